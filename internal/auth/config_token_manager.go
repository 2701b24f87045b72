package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
)

// ConfigPersister stores tokens so later processes can reuse them.
type ConfigPersister interface {
	SaveToken(tenantID, token string, expiresAt time.Time) error
}

// ConfigTokenManager wraps OAuth2TokenManager and persists every newly
// issued token through a ConfigPersister.
type ConfigTokenManager struct {
	oauth2Manager   *OAuth2TokenManager
	configPersister ConfigPersister
	tenantID        string
	mutex           sync.Mutex
	lastToken       string
	lastExpiry      time.Time
	// OnPersistError is called when persisting fails. Requests still succeed.
	OnPersistError func(error)
}

// NewConfigTokenManager creates a config-persisting token manager seeded
// with a previously stored token.
func NewConfigTokenManager(config *OAuth2Config, persister ConfigPersister, tenantID, initialToken string, initialExpiry time.Time) *ConfigTokenManager {
	oauth2Manager := NewOAuth2TokenManager(config)

	if initialToken != "" {
		oauth2Manager.SetToken(initialToken, initialExpiry)
	}

	return &ConfigTokenManager{
		oauth2Manager:   oauth2Manager,
		configPersister: persister,
		tenantID:        tenantID,
		lastToken:       initialToken,
		lastExpiry:      initialExpiry,
	}
}

// GetToken returns a valid access token, refreshing and persisting if necessary.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.oauth2Manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.persistIfChanged()

	return token, nil
}

// RefreshToken forces a token refresh.
func (m *ConfigTokenManager) RefreshToken(ctx context.Context) error {
	err := m.oauth2Manager.RefreshToken(ctx)
	if err != nil {
		return err
	}

	m.persistIfChanged()

	return nil
}

func (m *ConfigTokenManager) persistIfChanged() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	current := m.oauth2Manager.Current()
	if current == nil || (current.AccessToken == m.lastToken && current.ExpiresAt.Equal(m.lastExpiry)) {
		return
	}

	err := m.persistToken(current)
	if err != nil && m.OnPersistError != nil {
		m.OnPersistError(err)
	}

	m.lastToken = current.AccessToken
	m.lastExpiry = current.ExpiresAt
}

func (m *ConfigTokenManager) persistToken(token *Token) error {
	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.SaveToken(m.tenantID, token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}
