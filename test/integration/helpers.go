//go:build integration

package integration

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	APIEndpoint  string
	Tenant       string
	ClientID     string
	ClientSecret string
	WfmPath      string
	Verbose      bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		APIEndpoint:  os.Getenv("WFM_IT_API"),
		Tenant:       os.Getenv("WFM_IT_TENANT"),
		ClientID:     os.Getenv("WFM_IT_CLIENT_ID"),
		ClientSecret: os.Getenv("WFM_IT_CLIENT_SECRET"),
		WfmPath:      getWfmPath(),
		Verbose:      os.Getenv("WFM_IT_VERBOSE") == "true",
	}
}

// getWfmPath determines the path to the wfm binary
func getWfmPath() string {
	if path := os.Getenv("WFM_BINARY_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"../../wfm",
		"./wfm",
		"../wfm",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "wfm" // Fallback to PATH
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.APIEndpoint == "" || config.Tenant == "" {
		t.Skip("WFM_IT_API or WFM_IT_TENANT not set, skipping integration test")
	}

	if config.ClientID == "" || config.ClientSecret == "" {
		t.Skip("WFM_IT_CLIENT_ID or WFM_IT_CLIENT_SECRET not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.WfmPath); err != nil {
		t.Skipf("wfm binary not found at %s, skipping integration test", config.WfmPath)
	}
}

// CommandRunner runs wfm commands against an isolated config file
type CommandRunner struct {
	config     *TestConfig
	configFile string
	t          *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
		t:          t,
	}
}

// Run executes a wfm command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a wfm command with stdin input
func (runner *CommandRunner) RunWithInput(input string, args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--config", runner.configFile}, args...)

	cmd := exec.Command(runner.config.WfmPath, args...)

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Stdin = strings.NewReader(input)

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.WfmPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// Login stores client credentials in the runner's config file
func (runner *CommandRunner) Login() error {
	_, stderr, err := runner.RunWithInput(runner.config.ClientSecret+"\n", "login",
		"--api", runner.config.APIEndpoint,
		"--tenant", runner.config.Tenant,
		"--client-id", runner.config.ClientID)
	if err != nil {
		return fmt.Errorf("failed to log in: %s", stderr)
	}

	return nil
}

// GenerateTestName creates a unique test resource name
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// Cleanup deletes test records, logging failures
func (runner *CommandRunner) Cleanup(endpoint string, ids ...string) {
	if len(ids) == 0 {
		return
	}

	args := append([]string{"delete", endpoint}, ids...)

	stdout, stderr, err := runner.Run(args...)
	if err != nil && runner.config.Verbose {
		runner.t.Logf("Cleanup warning for %s %v: %s\nStderr: %s", endpoint, ids, stdout, stderr)
	}
}
