package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Common static errors used throughout the commands package.
var (
	ErrItemsFailed          = errors.New("some items failed")
	ErrNotAuthenticated     = errors.New("not authenticated, use 'wfm login' or --token")
	ErrClientIDRequired     = errors.New("--client-id is required")
	ErrClientSecretRequired = errors.New("client secret is required")
	ErrNoIDs                = errors.New("at least one id is required")
)

// outputFormat returns the requested output format. Without an explicit
// choice, a terminal gets a table and anything else gets JSON.
func outputFormat(w io.Writer) (string, error) {
	format := strings.ToLower(viper.GetString("output"))

	switch format {
	case constants.FormatTable, constants.FormatJSON, constants.FormatYAML:
		return format, nil
	case "":
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return constants.FormatTable, nil
		}

		return constants.FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", constants.ErrInvalidFormat, format)
	}
}

// StandardJSONRenderer writes data as indented JSON.
func StandardJSONRenderer[T any](w io.Writer, data T) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer writes data as YAML.
func StandardYAMLRenderer[T any](w io.Writer, data T) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(constants.JSONIndentSize)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return encoder.Close()
}

// render writes data in the selected format, using table for the table format.
func render[T any](w io.Writer, data T, table func(io.Writer) error) error {
	format, err := outputFormat(w)
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		return StandardJSONRenderer(w, data)
	case constants.FormatYAML:
		return StandardYAMLRenderer(w, data)
	default:
		return table(w)
	}
}

// columnTitle turns a field name like "first_name" into "First Name".
func columnTitle(field string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(field, "_", " "))
}

// recordColumns returns the union of record keys, id first and the rest sorted.
func recordColumns(records []wfm.Record) []string {
	seen := map[string]bool{}

	for _, record := range records {
		for key := range record {
			seen[key] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for key := range seen {
		if key != "id" {
			columns = append(columns, key)
		}
	}

	sort.Strings(columns)

	if seen["id"] {
		columns = append([]string{"id"}, columns...)
	}

	return columns
}

// cellValue formats a record value for a table cell.
func cellValue(value any) string {
	var text string

	switch v := value.(type) {
	case nil:
		return ""
	case string:
		text = v
	case bool:
		text = strconv.FormatBool(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		text = string(encoded)
	default:
		text = fmt.Sprint(v)
	}

	if len(text) > constants.StringTruncationLength {
		text = text[:constants.StringTruncationLength-3] + "..."
	}

	return text
}

func renderRecordsTable(w io.Writer, records []wfm.Record) error {
	if len(records) == 0 {
		_, _ = io.WriteString(w, "No records found\n")

		return nil
	}

	columns := recordColumns(records)

	header := make([]any, 0, len(columns))
	for _, column := range columns {
		header = append(header, columnTitle(column))
	}

	table := tablewriter.NewWriter(w)
	table.Header(header...)

	for _, record := range records {
		row := make([]any, 0, len(columns))
		for _, column := range columns {
			row = append(row, cellValue(record[column]))
		}

		_ = table.Append(row...)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func renderFailuresTable(w io.Writer, failures []*wfm.ItemError) error {
	table := tablewriter.NewWriter(w)
	table.Header("Item", "Code", "Message")

	for _, failure := range failures {
		_ = table.Append(failure.Key, failure.Code, failure.Message)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// validateFilePath rejects paths that escape the working directory.
func validateFilePath(filePath string) error {
	cleanPath := filepath.Clean(filePath)

	if filepath.IsAbs(filePath) {
		if cleanPath != filePath {
			return constants.ErrDirectoryTraversal
		}

		return nil
	}

	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return constants.ErrDirectoryTraversal
	}

	return nil
}

// readInput reads path, or standard input when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return nil, constants.ErrNoInputFile
	}

	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading standard input: %w", err)
		}

		return data, nil
	}

	err := validateFilePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotRegularFile, path)
	}

	// path is validated above
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, nil
}

// parseRecords decodes a JSON or YAML document holding an array of objects
// or a single object.
func parseRecords(data []byte) ([]wfm.Record, error) {
	var records []wfm.Record

	err := yaml.Unmarshal(data, &records)
	if err == nil && records != nil {
		return records, nil
	}

	var record wfm.Record

	err = yaml.Unmarshal(data, &record)
	if err != nil || record == nil {
		return nil, constants.ErrInvalidInput
	}

	return []wfm.Record{record}, nil
}

// parseFields parses "key=value" form fields.
func parseFields(expressions []string) (map[string]string, error) {
	fields := make(map[string]string, len(expressions))

	for _, expr := range expressions {
		key, value, ok := strings.Cut(expr, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: field %q must be key=value", wfm.ErrConfiguration, expr)
		}

		fields[strings.TrimSpace(key)] = value
	}

	return fields, nil
}
