package wfmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fivetwenty-io/wfm-client/internal/client"
	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// Static errors for err113 compliance.
var (
	ErrMetadataRequestFailed = errors.New("authorization server metadata request failed")
	ErrNoTokenEndpoint       = errors.New("authorization server metadata has no token_endpoint")
)

const metadataPath = "/.well-known/oauth-authorization-server"

// New creates a new workforce-management API client.
func New(ctx context.Context, config *wfm.Config) (wfm.Client, error) {
	if config == nil {
		return nil, wfm.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, wfm.ErrAPIEndpointRequired
	}

	// Normalize API endpoint
	apiEndpoint := strings.TrimSuffix(config.APIEndpoint, "/")
	if !strings.HasPrefix(apiEndpoint, "http://") && !strings.HasPrefix(apiEndpoint, "https://") {
		apiEndpoint = "https://" + apiEndpoint
	}

	config.APIEndpoint = apiEndpoint

	if needsAuth(config) && config.TokenURL == "" {
		tokenURL, err := DiscoverTokenEndpoint(ctx, apiEndpoint)
		if err != nil {
			return nil, fmt.Errorf("discovering token endpoint: %w", err)
		}

		config.TokenURL = tokenURL
	}

	wfmClient, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return wfmClient, nil
}

// needsAuth checks if the config requires a token endpoint.
func needsAuth(config *wfm.Config) bool {
	return config.AccessToken == "" && config.ClientID != ""
}

// DiscoverTokenEndpoint reads the token endpoint from the authorization
// server metadata. A missing metadata document selects the default path.
func DiscoverTokenEndpoint(ctx context.Context, apiEndpoint string) (string, error) {
	httpClient := &http.Client{Timeout: constants.ShortHTTPTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiEndpoint+metadataPath, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("getting authorization server metadata: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return apiEndpoint + "/oauth/token", nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return "", fmt.Errorf("%w with status %d: %s", ErrMetadataRequestFailed, resp.StatusCode, string(body))
	}

	var metadata struct {
		TokenEndpoint string `json:"token_endpoint"`
	}

	err = json.NewDecoder(resp.Body).Decode(&metadata)
	if err != nil {
		return "", fmt.Errorf("parsing authorization server metadata: %w", err)
	}

	if metadata.TokenEndpoint == "" {
		return "", ErrNoTokenEndpoint
	}

	return metadata.TokenEndpoint, nil
}

// NewWithToken creates a new client with an API endpoint, tenant and access token.
func NewWithToken(ctx context.Context, endpoint, tenantID, token string) (wfm.Client, error) {
	return New(ctx, &wfm.Config{
		APIEndpoint: endpoint,
		TenantID:    tenantID,
		AccessToken: token,
	})
}

// NewWithClientCredentials creates a new client using OAuth2 client credentials.
func NewWithClientCredentials(ctx context.Context, endpoint, tenantID, clientID, clientSecret string) (wfm.Client, error) {
	return New(ctx, &wfm.Config{
		APIEndpoint:  endpoint,
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}
