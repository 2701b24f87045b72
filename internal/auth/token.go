// Package auth provides bearer token managers for the HTTP layer.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
	ErrNoClientCredentials      = errors.New("client ID and secret are required")
	ErrNoTokenURL               = errors.New("token URL is required")
)

// TokenManager supplies bearer tokens.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
}

// Token is an OAuth2 access token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// Valid reports whether the token can be used for at least the expiration buffer.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token, or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// StaticTokenManager always returns the same token.
type StaticTokenManager struct {
	token string
}

// NewStaticTokenManager creates a manager for a pre-issued token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the static token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	return m.token, nil
}

// RefreshToken always fails.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}
