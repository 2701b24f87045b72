package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fivetwenty-io/wfm-client/internal/auth"
	"github.com/fivetwenty-io/wfm-client/internal/client"
	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the persisted CLI configuration.
type Config struct {
	API            string     `json:"api,omitempty"              yaml:"api,omitempty"`
	Tenant         string     `json:"tenant,omitempty"           yaml:"tenant,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	ClientID       string     `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"`
	TokenURL       string     `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	EventsURL      string     `json:"events_url,omitempty"       yaml:"events_url,omitempty"`
	Output         string     `json:"output,omitempty"           yaml:"output,omitempty"`
}

// configFilePath returns the config file in use, or the default location.
func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".wfm", "config.yml"), nil
}

// loadConfigFile reads the persisted configuration. Flags and environment
// variables are not applied, so saving it back never persists overrides.
func loadConfigFile() (*Config, error) {
	configFile, err := configFilePath()
	if err != nil {
		return nil, err
	}

	// configFile comes from the --config flag or the user's home directory
	// #nosec G304
	data, err := os.ReadFile(configFile)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// newLogger builds the CLI logger. Verbose output switches to debug level
// and enables HTTP request logging.
func newLogger() *wfm.HCLogger {
	level := hclog.Warn
	if viper.GetBool("verbose") {
		level = hclog.Debug
	}

	return wfm.NewHCLogger(hclog.New(&hclog.LoggerOptions{
		Name:   "wfm",
		Level:  level,
		Output: os.Stderr,
	}))
}

// buildClientConfig maps the effective CLI settings onto a client config.
func buildClientConfig(logger wfm.Logger) (*wfm.Config, error) {
	config := &wfm.Config{
		APIEndpoint:       viper.GetString("api"),
		TenantID:          viper.GetString("tenant"),
		ClientID:          viper.GetString("client_id"),
		ClientSecret:      viper.GetString("client_secret"),
		TokenURL:          viper.GetString("token_url"),
		HTTPTimeout:       viper.GetDuration("timeout"),
		RequestsPerSecond: viper.GetFloat64("requests_per_second"),
		EventsURL:         viper.GetString("events_url"),
		Debug:             viper.GetBool("verbose"),
		Logger:            logger,
		UserAgent:         constants.DefaultUserAgent + " (cli)",
	}

	if config.APIEndpoint == "" {
		return nil, constants.ErrNoAPIEndpoint
	}

	if config.TenantID == "" {
		return nil, constants.ErrNoTenant
	}

	return config, nil
}

// createTokenManager prefers client credentials, which renew and persist
// tokens, over a static token.
func createTokenManager(config *wfm.Config, logger wfm.Logger) (auth.TokenManager, error) {
	token := viper.GetString("token")

	if config.ClientID != "" && config.ClientSecret != "" {
		var expiry time.Time
		if viper.IsSet("token_expires_at") {
			expiry = viper.GetTime("token_expires_at")
		}

		manager := auth.NewConfigTokenManager(client.OAuth2Config(config), NewConfigPersister(), config.TenantID, token, expiry)
		manager.OnPersistError = func(err error) {
			logger.Warn("failed to persist token", map[string]interface{}{"error": err.Error()})
		}

		return manager, nil
	}

	if token != "" {
		return auth.NewStaticTokenManager(token), nil
	}

	return nil, ErrNotAuthenticated
}

// CreateClient creates a client from flags, environment and the config file.
func CreateClient() (*client.Client, wfm.Logger, error) {
	logger := newLogger()

	config, err := buildClientConfig(logger)
	if err != nil {
		return nil, nil, err
	}

	tokenManager, err := createTokenManager(config, logger)
	if err != nil {
		return nil, nil, err
	}

	wfmClient, err := client.NewWithTokenManager(config, tokenManager)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	return wfmClient, logger, nil
}

// logRateLimit reports the remaining request budget after an operation.
func logRateLimit(logger wfm.Logger, wfmClient wfm.Client) {
	state := wfmClient.RateLimit()
	if !state.Known() {
		return
	}

	fields := map[string]interface{}{
		"limit":     state.Limit,
		"remaining": state.Remaining,
	}

	if !state.ResetAt.IsZero() {
		fields["reset_at"] = state.ResetAt.Format(time.RFC3339)
	}

	logger.Debug("rate limit", fields)
}

// withClient runs fn with a client and logs the budget once it returns.
func withClient(ctx context.Context, fn func(ctx context.Context, wfmClient *client.Client) error) error {
	wfmClient, logger, err := CreateClient()
	if err != nil {
		return err
	}

	defer func() { _ = wfmClient.Close() }()

	err = fn(ctx, wfmClient)

	logRateLimit(logger, wfmClient)

	return err
}
