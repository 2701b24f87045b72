package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fivetwenty-io/wfm-client/internal/auth"
	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfmclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		tokenURL     string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with client credentials",
		Long: `Obtain an access token with the OAuth2 client credentials grant and store
the endpoint, tenant and credentials in the config file. The token is renewed
automatically by later commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, clientID, clientSecret, tokenURL)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret (prompted when omitted)")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "token endpoint (discovered when omitted)")

	return cmd
}

func runLogin(cmd *cobra.Command, clientID, clientSecret, tokenURL string) error {
	apiEndpoint := strings.TrimSuffix(viper.GetString("api"), "/")
	if apiEndpoint == "" {
		return constants.ErrNoAPIEndpoint
	}

	tenant := viper.GetString("tenant")
	if tenant == "" {
		return constants.ErrNoTenant
	}

	if clientID == "" {
		clientID = viper.GetString("client_id")
	}

	if clientID == "" {
		return ErrClientIDRequired
	}

	if clientSecret == "" {
		clientSecret = viper.GetString("client_secret")
	}

	if clientSecret == "" {
		secret, err := promptSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		clientSecret = secret
	}

	ctx := cmd.Context()

	if tokenURL == "" {
		discovered, err := wfmclient.DiscoverTokenEndpoint(ctx, apiEndpoint)
		if err != nil {
			return fmt.Errorf("discovering token endpoint: %w", err)
		}

		tokenURL = discovered
	}

	manager := auth.NewOAuth2TokenManager(&auth.OAuth2Config{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})

	_, err := manager.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	config, err := loadConfigFile()
	if err != nil {
		return err
	}

	token := manager.Current()

	config.API = apiEndpoint
	config.Tenant = tenant
	config.ClientID = clientID
	config.ClientSecret = clientSecret
	config.TokenURL = tokenURL
	config.Token = token.AccessToken
	config.TokenExpiresAt = nil

	if !token.ExpiresAt.IsZero() {
		expiresAt := token.ExpiresAt
		config.TokenExpiresAt = &expiresAt
	}

	err = saveConfigStruct(config)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s (tenant %s)\n", apiEndpoint, clientID, tenant)

	return nil
}

// promptSecret reads the client secret without echo on a terminal, or a
// single line otherwise.
func promptSecret(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(out, "Client secret: ")

		secretBytes, err := term.ReadPassword(int(f.Fd()))

		_, _ = fmt.Fprintln(out)

		if err != nil {
			return "", fmt.Errorf("reading client secret: %w", err)
		}

		return strings.TrimSpace(string(secretBytes)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading client secret: %w", err)
	}

	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", ErrClientSecretRequired
	}

	return secret, nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long:  "Remove the stored token and client credentials from the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfigFile()
			if err != nil {
				return err
			}

			config.Token = ""
			config.TokenExpiresAt = nil
			config.ClientID = ""
			config.ClientSecret = ""

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}
