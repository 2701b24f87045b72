package constants

import "errors"

// Configuration errors.
var (
	ErrNoAPIEndpoint      = errors.New("no API endpoint configured, use --api or WFM_API")
	ErrNoTenant           = errors.New("no tenant configured, use --tenant or WFM_TENANT")
	ErrInvalidFormat      = errors.New("invalid output format")
	ErrInvalidInput       = errors.New("input must be a JSON or YAML array of objects")
	ErrNoInputFile        = errors.New("--file is required")
	ErrNotRegularFile     = errors.New("path is not a regular file")
	ErrDirectoryTraversal = errors.New("directory traversal detected in file path")
)
