package commands

import (
	"sync"
	"time"

	"github.com/fivetwenty-io/wfm-client/internal/auth"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

var _ auth.ConfigPersister = (*ConfigPersister)(nil)

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// SaveToken stores a renewed token in the config file when it belongs to
// the configured tenant.
func (p *ConfigPersister) SaveToken(tenantID, token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config, err := loadConfigFile()
	if err != nil {
		return err
	}

	if config.Tenant != "" && config.Tenant != tenantID {
		return nil
	}

	config.Token = token
	config.TokenExpiresAt = nil

	if !expiresAt.IsZero() {
		config.TokenExpiresAt = &expiresAt
	}

	return saveConfigStruct(config)
}
