package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600

	// DownloadFilePerm is the permission for downloaded files.
	DownloadFilePerm = 0640
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default per-exchange timeout.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token requests.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default number of retries after the first attempt.
	DefaultRetryMax = 5

	// DefaultRetryWaitMin is the initial backoff between transient retries.
	DefaultRetryWaitMin = 500 * time.Millisecond

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// ExponentialBackoffBase is the base for exponential backoff.
	ExponentialBackoffBase = 2

	// BackoffJitter is the randomization factor applied to backoff intervals.
	BackoffJitter = 0.5
)

// Rate limiting.
const (
	// DefaultRateLimitWait is used when a rate limited response carries no reset time.
	DefaultRateLimitWait = 5 * time.Second

	// MaxRateLimitWait bounds any single rate limit wait.
	MaxRateLimitWait = 60 * time.Second

	// RateLimitExhaustedThreshold is the remaining budget at which requests wait for the reset.
	RateLimitExhaustedThreshold = 0
)

// Rate limit and tracing headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
	HeaderTenantID           = "X-Tenant-ID"
	HeaderRequestID          = "X-Request-ID"
)

// Pagination.
const (
	// StandardPageSize is the common page size for API responses.
	StandardPageSize = 50

	// MaxPages is used by the CLI to prevent unbounded reads.
	MaxPages = 50

	// PageParam is the query parameter advanced for number-paged endpoints.
	PageParam = "page"

	// CursorParam is the query parameter carrying the continuation cursor.
	CursorParam = "cursor"
)

// Wire envelope keys.
const (
	EnvelopeResults = "results"
	EnvelopeMore    = "more"
	EnvelopeCursor  = "cursor"
	EnvelopeNext    = "next_page"
	EnvelopeError   = "error"
	EnvelopeIDs     = "ids"
	MultipartField  = "file"
)

// Misc.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "wfm-client/1.0"

	// DefaultEventsSubjectPrefix prefixes operation event subjects.
	DefaultEventsSubjectPrefix = "wfm.operations"

	// StringTruncationLength is the default length for truncating strings.
	StringTruncationLength = 40
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)
