package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The command tests share the global viper instance and run sequentially.

type fakeAPI struct {
	mu      sync.Mutex
	queries []string
	auth    []string
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, r.URL.RawQuery)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", "100")
	w.Header().Set("X-RateLimit-Remaining", "42")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		user, secret, _ := r.BasicAuth()
		if user != "cli-client" || secret != "s3cret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})

			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "cli-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("GET /v1/employees", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)

		page := 1
		if value := r.URL.Query().Get("page"); value != "" {
			page, _ = strconv.Atoi(value)
		}

		employees := []map[string]any{
			{"id": "e-" + strconv.Itoa(page), "first_name": "Ada", "department_id": r.URL.Query().Get("department_id")},
		}

		writeJSON(w, http.StatusOK, map[string]any{"results": map[string]any{"employees": employees}, "more": page < 2})
	})

	mux.HandleFunc("POST /v1/employees", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)

		var envelope struct {
			Employees []map[string]any `json:"employees"`
		}

		_ = json.NewDecoder(r.Body).Decode(&envelope)

		entries := map[string]any{}

		for i, employee := range envelope.Employees {
			if employee["email"] == "invalid" {
				entries[strconv.Itoa(i)] = map[string]any{"error": map[string]string{"code": "validation_failed", "message": "email is invalid"}}

				continue
			}

			employee["id"] = "emp-" + strconv.Itoa(i)
			entries[strconv.Itoa(i)] = employee
		}

		writeJSON(w, http.StatusOK, map[string]any{"results": map[string]any{"employees": entries}})
	})

	mux.HandleFunc("PATCH /v1/employees", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)

		var envelope struct {
			Employees []map[string]any `json:"employees"`
		}

		_ = json.NewDecoder(r.Body).Decode(&envelope)

		entries := map[string]any{}

		for _, employee := range envelope.Employees {
			id, ok := employee["id"].(float64)
			if !ok {
				continue
			}

			entries[strconv.FormatFloat(id, 'f', -1, 64)] = employee
		}

		writeJSON(w, http.StatusOK, map[string]any{"results": map[string]any{"employees": entries}})
	})

	mux.HandleFunc("DELETE /v1/leave-requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /v1/documents", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"code": "validation_failed", "message": err.Error()}})

			return
		}
		defer file.Close()

		content, _ := io.ReadAll(file)

		writeJSON(w, http.StatusCreated, map[string]any{"documents": wfm.Document{
			Resource:   wfm.Resource{ID: "doc-1"},
			Filename:   header.Filename,
			EmployeeID: r.FormValue("employee_id"),
			Size:       int64(len(content)),
		}})
	})

	mux.HandleFunc("GET /v1/documents/{id}/content", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("content of " + r.PathValue("id")))
	})

	return mux
}

// setupCLI points the CLI at a fresh config file and the given settings.
func setupCLI(t *testing.T, settings map[string]any) string {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	configFile := filepath.Join(t.TempDir(), "config.yml")
	viper.SetConfigFile(configFile)

	for key, value := range settings {
		viper.Set(key, value)
	}

	return configFile
}

func newFakeServer(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()

	api := &fakeAPI{}
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	return api, server
}

func apiSettings(server *httptest.Server, output string) map[string]any {
	return map[string]any{
		"api":    server.URL,
		"tenant": "acme",
		"token":  "static-token",
		"output": output,
	}
}

func runCommand(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	setupCLI(t, map[string]any{"output": constants.FormatJSON})

	out, err := runCommand(t, NewVersionCommand("1.2.3", "abc123", "2026-01-01"), "")
	require.NoError(t, err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, VersionInfo{Version: "1.2.3", Commit: "abc123", Built: "2026-01-01"}, info)

	viper.Set("output", constants.FormatTable)

	out, err = runCommand(t, NewVersionCommand("1.2.3", "abc123", "2026-01-01"), "")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "abc123")
}

func TestEndpointsCommand(t *testing.T) {
	setupCLI(t, map[string]any{"output": constants.FormatJSON})

	out, err := runCommand(t, NewEndpointsCommand(), "")
	require.NoError(t, err)

	var infos []wfm.EndpointInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 7)
	assert.Equal(t, "departments", infos[0].ID)

	viper.Set("output", constants.FormatTable)

	out, err = runCommand(t, NewEndpointsCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "/v1/leave-requests")
}

func TestGetCommand(t *testing.T) {
	api, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatJSON))

	out, err := runCommand(t, NewGetCommand(), "", "employees", "--filter", "department_id=d-1", "--page-size", "10")
	require.NoError(t, err)

	var results wfm.Results[wfm.Record]
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results.Items, 2)
	assert.Equal(t, "e-1", results.Items[0].GetID())
	assert.Equal(t, "e-2", results.Items[1].GetID())
	assert.Equal(t, "d-1", results.Items[1]["department_id"])

	require.Len(t, api.queries, 2)
	assert.Contains(t, api.queries[0], "per_page=10")
	assert.Contains(t, api.queries[1], "page=2")
	assert.Equal(t, "Bearer static-token", api.auth[0])
}

func TestGetCommand_MaxPagesTable(t *testing.T) {
	_, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatTable))

	out, err := runCommand(t, NewGetCommand(), "", "employees", "--max-pages", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "e-1")
	assert.NotContains(t, out, "e-2")
	assert.Contains(t, out, "More results available (next: 2)")
}

func TestGetCommand_UnknownEndpoint(t *testing.T) {
	_, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatJSON))

	_, err := runCommand(t, NewGetCommand(), "", "payroll")
	require.ErrorIs(t, err, wfm.ErrUnknownEndpoint)
}

func TestCreateCommand(t *testing.T) {
	_, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatJSON))

	input := filepath.Join(t.TempDir(), "employees.yaml")
	require.NoError(t, os.WriteFile(input, []byte(`
- first_name: Ada
  email: ada@example.com
- first_name: Bob
  email: invalid
`), 0o600))

	out, err := runCommand(t, NewCreateCommand(), "", "employees", "-f", input)
	require.ErrorIs(t, err, ErrItemsFailed)
	assert.Contains(t, err.Error(), "1")

	var results wfm.Results[wfm.Record]
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results.Items, 1)
	assert.Equal(t, "emp-0", results.Items[0].GetID())
	require.Contains(t, results.Outcomes, wfm.PositionKey(1))
	assert.Equal(t, "validation_failed", results.Outcomes[wfm.PositionKey(1)].Err.Code)
}

func TestUpdateCommand_NumericIdentifiers(t *testing.T) {
	api, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatJSON))

	input := filepath.Join(t.TempDir(), "employees.yaml")
	require.NoError(t, os.WriteFile(input, []byte(`
- id: 42
  last_name: Updated
- id: 43
  last_name: Updated
`), 0o600))

	out, err := runCommand(t, NewUpdateCommand(), "", "employees", "-f", input)
	require.NoError(t, err)

	var results wfm.Results[wfm.Record]
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results.Items, 2)
	require.Len(t, results.Outcomes, 2)
	assert.True(t, results.Outcomes["42"].Succeeded())
	assert.True(t, results.Outcomes["43"].Succeeded())
	assert.Equal(t, "Updated", results.Outcomes["43"].Entity["last_name"])
	assert.Len(t, api.queries, 1)
}

func TestCreateCommand_StdinTable(t *testing.T) {
	_, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatTable))

	out, err := runCommand(t, NewCreateCommand(), `[{"first_name": "Ada"}, {"first_name": "Bob"}]`, "employees", "-f", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "2 succeeded, 0 failed")
}

func TestCreateCommand_InputErrors(t *testing.T) {
	_, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatJSON))

	_, err := runCommand(t, NewCreateCommand(), "", "employees")
	require.ErrorIs(t, err, constants.ErrNoInputFile)

	_, err = runCommand(t, NewCreateCommand(), "just a string", "employees", "-f", "-")
	require.ErrorIs(t, err, constants.ErrInvalidInput)

	_, err = runCommand(t, NewUpdateCommand(), "", "employees", "-f", "../outside.yaml")
	require.ErrorIs(t, err, constants.ErrDirectoryTraversal)
}

func TestDeleteCommand(t *testing.T) {
	api, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatTable))

	out, err := runCommand(t, NewDeleteCommand(), "", "leave_requests", "lr-1", "lr-2")
	require.NoError(t, err)
	assert.Contains(t, out, "2 succeeded, 0 failed")
	assert.Len(t, api.queries, 2)

	_, err = runCommand(t, NewDeleteCommand(), "", "leave_requests")
	require.ErrorIs(t, err, ErrNoIDs)
}

func TestUploadAndDownloadCommands(t *testing.T) {
	_, server := newFakeServer(t)
	setupCLI(t, apiSettings(server, constants.FormatJSON))

	dir := t.TempDir()
	source := filepath.Join(dir, "contract.txt")
	require.NoError(t, os.WriteFile(source, []byte("signed"), 0o600))

	out, err := runCommand(t, NewUploadCommand(), "", source, "--employee-id", "e-1")
	require.NoError(t, err)

	var results wfm.Results[wfm.Document]
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results.Items, 1)
	assert.Equal(t, "contract.txt", results.Items[0].Filename)
	assert.Equal(t, "e-1", results.Items[0].EmployeeID)
	assert.Equal(t, int64(6), results.Items[0].Size)

	out, err = runCommand(t, NewDownloadCommand(), "", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "content of doc-1", out)

	target := filepath.Join(dir, "copy.txt")

	_, err = runCommand(t, NewDownloadCommand(), "", "doc-1", "-f", target)
	require.NoError(t, err)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "content of doc-1", string(content))
}

func TestCreateClient_RequiresSettings(t *testing.T) {
	setupCLI(t, nil)

	_, _, err := CreateClient()
	require.ErrorIs(t, err, constants.ErrNoAPIEndpoint)

	viper.Set("api", "https://api.example.com")

	_, _, err = CreateClient()
	require.ErrorIs(t, err, constants.ErrNoTenant)

	viper.Set("tenant", "acme")

	_, _, err = CreateClient()
	require.ErrorIs(t, err, ErrNotAuthenticated)

	viper.Set("token", "static-token")

	client, _, err := CreateClient()
	require.NoError(t, err)
	assert.NotNil(t, client.GetTokenManager())
}

func TestLoginCommand(t *testing.T) {
	_, server := newFakeServer(t)
	setupCLI(t, map[string]any{"api": server.URL, "tenant": "acme"})

	out, err := runCommand(t, NewLoginCommand(), "s3cret\n", "--client-id", "cli-client")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")

	config, err := loadConfigFile()
	require.NoError(t, err)
	assert.Equal(t, server.URL, config.API)
	assert.Equal(t, "acme", config.Tenant)
	assert.Equal(t, "cli-client", config.ClientID)
	assert.Equal(t, "s3cret", config.ClientSecret)
	assert.Equal(t, server.URL+"/oauth/token", config.TokenURL)
	assert.Equal(t, "cli-token", config.Token)
	require.NotNil(t, config.TokenExpiresAt)
	assert.True(t, config.TokenExpiresAt.After(time.Now()))

	out, err = runCommand(t, NewLogoutCommand(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	config, err = loadConfigFile()
	require.NoError(t, err)
	assert.Empty(t, config.Token)
	assert.Empty(t, config.ClientSecret)
	assert.Equal(t, server.URL, config.API)
}

func TestLoginCommand_RejectedCredentials(t *testing.T) {
	_, server := newFakeServer(t)
	setupCLI(t, map[string]any{"api": server.URL, "tenant": "acme"})

	_, err := runCommand(t, NewLoginCommand(), "", "--client-id", "cli-client", "--client-secret", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")

	_, err = runCommand(t, NewLoginCommand(), "", "--client-secret", "s3cret")
	require.ErrorIs(t, err, ErrClientIDRequired)
}

func TestConfigPersister_SaveToken(t *testing.T) {
	setupCLI(t, nil)

	require.NoError(t, saveConfigStruct(&Config{API: "https://api.example.com", Tenant: "acme"}))

	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	persister := NewConfigPersister()

	require.NoError(t, persister.SaveToken("acme", "renewed", expiresAt))

	config, err := loadConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "renewed", config.Token)
	require.NotNil(t, config.TokenExpiresAt)
	assert.True(t, expiresAt.Equal(*config.TokenExpiresAt))
	assert.Equal(t, "https://api.example.com", config.API)

	require.NoError(t, persister.SaveToken("other-tenant", "foreign", expiresAt))

	config, err = loadConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "renewed", config.Token)
}
