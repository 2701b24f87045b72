package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
)

// OAuth2Config configures the client credentials grant.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// AccessToken seeds the store with an already issued token.
	AccessToken string
	// HTTPClient is used for token requests. Defaults to a client with a short timeout.
	HTTPClient *http.Client
}

// OAuth2TokenManager obtains tokens with the client credentials grant and
// renews them before they expire.
type OAuth2TokenManager struct {
	config *OAuth2Config
	store  *TokenStore
	mu     sync.Mutex
}

// NewOAuth2TokenManager creates a manager for config.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	manager := &OAuth2TokenManager{
		config: config,
		store:  NewTokenStore(),
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{AccessToken: config.AccessToken})
	}

	return manager
}

// GetToken returns a valid access token, refreshing if necessary.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := m.RefreshToken(ctx)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken requests a new token from the token endpoint.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.ClientID == "" || m.config.ClientSecret == "" {
		return ErrNoClientCredentials
	}

	if m.config.TokenURL == "" {
		return ErrNoTokenURL
	}

	httpClient := m.config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	ccConfig := &clientcredentials.Config{
		ClientID:     m.config.ClientID,
		ClientSecret: m.config.ClientSecret,
		TokenURL:     m.config.TokenURL,
		Scopes:       m.config.Scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	oauthToken, err := ccConfig.Token(context.WithValue(ctx, oauth2.HTTPClient, httpClient))
	if err != nil {
		return fmt.Errorf("requesting client credentials token: %w", err)
	}

	m.store.Set(fromOAuth2(oauthToken))

	return nil
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt})
}

// Current returns the stored token, or nil.
func (m *OAuth2TokenManager) Current() *Token {
	return m.store.Get()
}

func fromOAuth2(token *oauth2.Token) *Token {
	converted := &Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}

	if !token.Expiry.IsZero() {
		converted.ExpiresIn = int(time.Until(token.Expiry).Seconds())
	}

	return converted
}
