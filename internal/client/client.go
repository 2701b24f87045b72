package client

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/wfm-client/internal/auth"
	"github.com/fivetwenty-io/wfm-client/internal/constants"
	"github.com/fivetwenty-io/wfm-client/internal/engine"
	"github.com/fivetwenty-io/wfm-client/internal/events"
	"github.com/fivetwenty-io/wfm-client/internal/http"
	"github.com/fivetwenty-io/wfm-client/internal/registry"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// Client implements the wfm.Client interface.
type Client struct {
	tokenManager auth.TokenManager
	registry     *registry.Registry
	engine       *engine.Engine
	publisher    events.Publisher

	// Resource clients
	employees     *ResourceClient[wfm.Employee]
	departments   *ResourceClient[wfm.Department]
	locations     *ResourceClient[wfm.Location]
	shifts        *ResourceClient[wfm.Shift]
	timesheets    *ResourceClient[wfm.Timesheet]
	leaveRequests *ResourceClient[wfm.LeaveRequest]
	documents     *DocumentsClient
}

var _ wfm.Client = (*Client)(nil)

type options struct {
	registry  *registry.Registry
	publisher events.Publisher
	budget    engine.Budget
}

// Option overrides a collaborator of the client.
type Option func(*options)

// WithRegistry replaces the built-in endpoint catalogue.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithPublisher replaces the publisher selected from the configuration.
func WithPublisher(publisher events.Publisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithBudget shares a rate limit budget between clients of the same tenant.
func WithBudget(budget engine.Budget) Option {
	return func(o *options) {
		o.budget = budget
	}
}

// createTokenManager creates appropriate token manager based on config.
func createTokenManager(config *wfm.Config) auth.TokenManager {
	if config.AccessToken != "" {
		return auth.NewStaticTokenManager(config.AccessToken)
	}

	if config.ClientID != "" && config.ClientSecret != "" {
		return auth.NewOAuth2TokenManager(OAuth2Config(config))
	}

	return nil // No authentication
}

// OAuth2Config returns the client credentials configuration for config.
func OAuth2Config(config *wfm.Config) *auth.OAuth2Config {
	return &auth.OAuth2Config{
		TokenURL:     TokenURL(config),
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       config.Scopes,
	}
}

// TokenURL returns the token endpoint from config, defaulting to the API's
// own /oauth/token.
func TokenURL(config *wfm.Config) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	return strings.TrimSuffix(config.APIEndpoint, "/") + "/oauth/token"
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *wfm.Config) []http.Option {
	httpOpts := []http.Option{http.WithTenant(config.TenantID)}

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))

		if hcl, ok := config.Logger.(*wfm.HCLogger); ok && config.Debug {
			httpOpts = append(httpOpts, http.WithLeveledLogger(hcl.Underlying()))
		}
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	return httpOpts
}

// createPublisher selects the events publisher from config.
func createPublisher(config *wfm.Config) (events.Publisher, error) {
	if config.EventsURL == "" {
		return events.NopPublisher{}, nil
	}

	publisher, err := events.NewPublisher(&events.Config{
		Type:          events.PublisherTypeNATS,
		URL:           config.EventsURL,
		SubjectPrefix: config.EventsSubjectPrefix,
		Name:          constants.DefaultUserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("creating events publisher: %w", err)
	}

	return publisher, nil
}

// New creates a new workforce-management API client.
func New(config *wfm.Config, opts ...Option) (*Client, error) {
	return NewWithTokenManager(config, createTokenManager(config), opts...)
}

// NewWithTokenManager creates a client with a custom token manager.
func NewWithTokenManager(config *wfm.Config, tokenManager auth.TokenManager, opts ...Option) (*Client, error) {
	if config.APIEndpoint == "" {
		return nil, wfm.ErrAPIEndpointRequired
	}

	if config.TenantID == "" {
		return nil, wfm.ErrTenantRequired
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.registry == nil {
		reg, err := registry.Default()
		if err != nil {
			return nil, err
		}

		o.registry = reg
	}

	if o.publisher == nil {
		publisher, err := createPublisher(config)
		if err != nil {
			return nil, err
		}

		o.publisher = publisher
	}

	if o.budget == nil {
		o.budget = engine.NewRateLimitBudget(config.RequestsPerSecond, config.RateLimitWaitMax)
	}

	httpClient := http.NewClient(config.APIEndpoint, tokenManager, createHTTPClientOptions(config)...)

	client := &Client{
		tokenManager: tokenManager,
		registry:     o.registry,
		publisher:    o.publisher,
	}

	client.engine = engine.New(o.registry, httpClient, engine.Options{
		RetryMax:         config.RetryMax,
		RetryWaitMin:     config.RetryWaitMin,
		RetryWaitMax:     config.RetryWaitMax,
		ExchangeTimeout:  config.HTTPTimeout,
		RateLimitWait:    config.RateLimitWait,
		RateLimitWaitMax: config.RateLimitWaitMax,
		Budget:           o.budget,
		Logger:           config.Logger,
		Publisher:        o.publisher,
	})

	client.initializeResourceClients()

	return client, nil
}

func (c *Client) initializeResourceClients() {
	c.employees = NewResourceClient[wfm.Employee](c.engine, "employees")
	c.departments = NewResourceClient[wfm.Department](c.engine, "departments")
	c.locations = NewResourceClient[wfm.Location](c.engine, "locations")
	c.shifts = NewResourceClient[wfm.Shift](c.engine, "shifts")
	c.timesheets = NewResourceClient[wfm.Timesheet](c.engine, "timesheets")
	c.leaveRequests = NewResourceClient[wfm.LeaveRequest](c.engine, "leave_requests")
	c.documents = NewDocumentsClient(c.engine, "documents")
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// Engine returns the execution engine shared by every resource client.
func (c *Client) Engine() *engine.Engine {
	return c.engine
}

// Employees implements wfm.Client.Employees.
func (c *Client) Employees() wfm.ResourceClient[wfm.Employee] {
	return c.employees
}

// Departments implements wfm.Client.Departments.
func (c *Client) Departments() wfm.ResourceClient[wfm.Department] {
	return c.departments
}

// Locations implements wfm.Client.Locations.
func (c *Client) Locations() wfm.ResourceClient[wfm.Location] {
	return c.locations
}

// Shifts implements wfm.Client.Shifts.
func (c *Client) Shifts() wfm.ResourceClient[wfm.Shift] {
	return c.shifts
}

// Timesheets implements wfm.Client.Timesheets.
func (c *Client) Timesheets() wfm.ResourceClient[wfm.Timesheet] {
	return c.timesheets
}

// LeaveRequests implements wfm.Client.LeaveRequests.
func (c *Client) LeaveRequests() wfm.ResourceClient[wfm.LeaveRequest] {
	return c.leaveRequests
}

// Documents implements wfm.Client.Documents.
func (c *Client) Documents() wfm.DocumentsClient {
	return c.documents
}

// Records implements wfm.Client.Records.
func (c *Client) Records(endpointID string) (wfm.ResourceClient[wfm.Record], error) {
	_, err := c.registry.Resolve(endpointID)
	if err != nil {
		return nil, err
	}

	return NewResourceClient[wfm.Record](c.engine, endpointID), nil
}

// Endpoints implements wfm.Client.Endpoints.
func (c *Client) Endpoints() []wfm.EndpointInfo {
	descriptors := c.registry.List()

	infos := make([]wfm.EndpointInfo, 0, len(descriptors))
	for _, descriptor := range descriptors {
		infos = append(infos, descriptor.Info())
	}

	return infos
}

// RateLimit implements wfm.Client.RateLimit.
func (c *Client) RateLimit() wfm.RateLimitState {
	return c.engine.Budget().Snapshot()
}

// Close implements wfm.Client.Close.
func (c *Client) Close() error {
	return c.publisher.Close()
}
