package wfm

import (
	"context"
	"time"
)

// Future is the handle of an operation running in the background.
type Future[T any] interface {
	// Done is closed when the operation has completed.
	Done() <-chan struct{}
	// Await blocks until the operation completes or ctx is done.
	Await(ctx context.Context) (T, error)
}

// ResourceClient is the per-endpoint operation surface. Every method has an
// Async variant; cancellation is expressed through ctx.
type ResourceClient[T any] interface {
	Create(ctx context.Context, items []T) (*Results[T], error)
	CreateAsync(ctx context.Context, items []T) Future[*Results[T]]
	Get(ctx context.Context, filter Filter, opts *RequestOptions) (*Results[T], error)
	GetAsync(ctx context.Context, filter Filter, opts *RequestOptions) Future[*Results[T]]
	Update(ctx context.Context, items []T) (*Results[T], error)
	UpdateAsync(ctx context.Context, items []T) Future[*Results[T]]
	Delete(ctx context.Context, ids []string) (*Results[T], error)
	DeleteAsync(ctx context.Context, ids []string) Future[*Results[T]]
}

// UploadRequest describes a file to upload.
type UploadRequest struct {
	Filename    string
	ContentType string
	Content     []byte
	// Fields are sent as additional multipart form fields.
	Fields map[string]string
}

// DownloadRequest identifies the content to download.
type DownloadRequest struct {
	ID    string
	Query Filter
}

// DocumentsClient adds file transfer to the resource operations.
type DocumentsClient interface {
	ResourceClient[Document]

	Upload(ctx context.Context, req *UploadRequest) (*Results[Document], error)
	UploadAsync(ctx context.Context, req *UploadRequest) Future[*Results[Document]]
	Download(ctx context.Context, req *DownloadRequest) (*Download, error)
	DownloadAsync(ctx context.Context, req *DownloadRequest) Future[*Download]
}

// EndpointInfo describes a registered endpoint.
type EndpointInfo struct {
	ID                 string          `json:"id"                 yaml:"id"`
	BasePath           string          `json:"base_path"          yaml:"base_path"`
	Entity             string          `json:"entity"             yaml:"entity"`
	SupportsBulk       bool            `json:"supports_bulk"      yaml:"supports_bulk"`
	MaxItemsPerCall    int             `json:"max_items_per_call" yaml:"max_items_per_call"`
	SupportsPagination bool            `json:"supports_pagination" yaml:"supports_pagination"`
	Operations         []OperationKind `json:"operations"         yaml:"operations"`
}

// Client is the workforce-management API client.
type Client interface {
	Employees() ResourceClient[Employee]
	Departments() ResourceClient[Department]
	Locations() ResourceClient[Location]
	Shifts() ResourceClient[Shift]
	Timesheets() ResourceClient[Timesheet]
	LeaveRequests() ResourceClient[LeaveRequest]
	Documents() DocumentsClient

	// Records returns an untyped client for any registered endpoint.
	Records(endpointID string) (ResourceClient[Record], error)
	// Endpoints lists the registered endpoints.
	Endpoints() []EndpointInfo
	// RateLimit returns the budget last reported by the API.
	RateLimit() RateLimitState
	// Close releases background resources such as the events connection.
	Close() error
}

// Logger is the structured logger used by the HTTP layer and the pipeline.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NoRetries disables retries when used as Config.RetryMax.
const NoRetries = -1

// Config represents client configuration for building a wfm.Client.
//
// # Authentication precedence
//
// AccessToken is used as a static bearer token when set. Otherwise, when
// ClientID and ClientSecret are set, tokens are obtained from TokenURL with
// the OAuth2 client credentials grant and refreshed before they expire.
type Config struct {
	// APIEndpoint: base URL of the API (e.g., "https://api.example.com").
	APIEndpoint string
	// TenantID: sent as X-Tenant-ID with every request.
	TenantID string

	// ClientID: OAuth2 client ID for the client credentials grant.
	ClientID string
	// ClientSecret: OAuth2 client secret used with ClientID.
	ClientSecret string
	// Scopes: optional OAuth2 scopes.
	Scopes []string
	// AccessToken: if set, used directly as a Bearer token.
	AccessToken string
	// TokenURL: full OAuth2 token endpoint. Defaults to APIEndpoint + "/oauth/token".
	TokenURL string

	// HTTPTimeout: per-exchange timeout. A timed out exchange is retried.
	HTTPTimeout time.Duration
	// RetryMax: retries per exchange after the first attempt. Zero selects
	// the default of 5; NoRetries allows a single attempt.
	RetryMax int
	// RetryWaitMin: initial backoff between transient retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between transient retries.
	RetryWaitMax time.Duration
	// RateLimitWait: wait used when a rate limited response carries no reset time.
	RateLimitWait time.Duration
	// RateLimitWaitMax: upper bound for any rate limit wait.
	RateLimitWaitMax time.Duration
	// RequestsPerSecond: optional client-side pacing shared by all operations.
	RequestsPerSecond float64

	// EventsURL: optional NATS URL; when set, an event is published for every
	// executed operation.
	EventsURL string
	// EventsSubjectPrefix: subject prefix for operation events.
	EventsSubjectPrefix string

	// Debug: enables verbose HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and the pipeline.
	Logger Logger
	// UserAgent: optional User-Agent header value.
	UserAgent string
}
