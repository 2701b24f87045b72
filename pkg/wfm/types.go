package wfm

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OperationKind identifies what an operation does against an endpoint.
type OperationKind string

// Operation kinds.
const (
	OperationCreate   OperationKind = "create"
	OperationGet      OperationKind = "get"
	OperationUpdate   OperationKind = "update"
	OperationDelete   OperationKind = "delete"
	OperationUpload   OperationKind = "upload"
	OperationDownload OperationKind = "download"
)

// OperationKinds lists every kind in a stable order.
func OperationKinds() []OperationKind {
	return []OperationKind{
		OperationCreate, OperationGet, OperationUpdate,
		OperationDelete, OperationUpload, OperationDownload,
	}
}

// ParseOperationKind parses a kind name case-insensitively.
func ParseOperationKind(s string) (OperationKind, error) {
	kind := OperationKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OperationKinds() {
		if kind == known {
			return kind, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedOperation, s)
}

// Identifiable is implemented by entities that carry a server identifier.
// Items without an identifier are correlated by their position in the input.
type Identifiable interface {
	GetID() string
}

// Resource holds the fields common to every entity.
type Resource struct {
	ID        string     `json:"id,omitempty"         yaml:"id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// GetID implements Identifiable.
func (r Resource) GetID() string {
	return r.ID
}

// Employee is a person employed by the tenant.
type Employee struct {
	Resource

	EmployeeNumber string     `json:"employee_number,omitempty" yaml:"employee_number,omitempty"`
	FirstName      string     `json:"first_name"                yaml:"first_name"`
	LastName       string     `json:"last_name"                 yaml:"last_name"`
	Email          string     `json:"email,omitempty"           yaml:"email,omitempty"`
	DepartmentID   string     `json:"department_id,omitempty"   yaml:"department_id,omitempty"`
	LocationID     string     `json:"location_id,omitempty"     yaml:"location_id,omitempty"`
	ManagerID      string     `json:"manager_id,omitempty"      yaml:"manager_id,omitempty"`
	Status         string     `json:"status,omitempty"          yaml:"status,omitempty"`
	HireDate       *time.Time `json:"hire_date,omitempty"       yaml:"hire_date,omitempty"`
}

// Department groups employees.
type Department struct {
	Resource

	Name     string `json:"name"                yaml:"name"`
	Code     string `json:"code,omitempty"      yaml:"code,omitempty"`
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// Location is a site employees work at.
type Location struct {
	Resource

	Name     string `json:"name"               yaml:"name"`
	Address  string `json:"address,omitempty"  yaml:"address,omitempty"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Shift is a scheduled work period.
type Shift struct {
	Resource

	EmployeeID string    `json:"employee_id"           yaml:"employee_id"`
	LocationID string    `json:"location_id,omitempty" yaml:"location_id,omitempty"`
	StartsAt   time.Time `json:"starts_at"             yaml:"starts_at"`
	EndsAt     time.Time `json:"ends_at"               yaml:"ends_at"`
	Role       string    `json:"role,omitempty"        yaml:"role,omitempty"`
	Published  bool      `json:"published"             yaml:"published"`
}

// Timesheet records worked hours for a period.
type Timesheet struct {
	Resource

	EmployeeID  string    `json:"employee_id"  yaml:"employee_id"`
	PeriodStart time.Time `json:"period_start" yaml:"period_start"`
	PeriodEnd   time.Time `json:"period_end"   yaml:"period_end"`
	Hours       float64   `json:"hours"        yaml:"hours"`
	Status      string    `json:"status"       yaml:"status"`
}

// LeaveRequest is an employee's request for time off.
type LeaveRequest struct {
	Resource

	EmployeeID string    `json:"employee_id"      yaml:"employee_id"`
	Type       string    `json:"type"             yaml:"type"`
	StartsOn   time.Time `json:"starts_on"        yaml:"starts_on"`
	EndsOn     time.Time `json:"ends_on"          yaml:"ends_on"`
	Status     string    `json:"status,omitempty" yaml:"status,omitempty"`
	Reason     string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Document is a file attached to an employee record.
type Document struct {
	Resource

	EmployeeID  string `json:"employee_id,omitempty"  yaml:"employee_id,omitempty"`
	Filename    string `json:"filename"               yaml:"filename"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"         yaml:"size,omitempty"`
}

// Record is an untyped entity, used for endpoints without a dedicated type.
type Record map[string]any

// GetID implements Identifiable.
func (r Record) GetID() string {
	switch id := r["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(id)
	default:
		return ""
	}
}

// Filter holds query filters sent unchanged with every page request.
type Filter map[string][]string

// NewFilter creates an empty filter.
func NewFilter() Filter {
	return Filter{}
}

// Add appends values for key and returns the filter for chaining.
func (f Filter) Add(key string, values ...string) Filter {
	f[key] = append(f[key], values...)

	return f
}

// Values returns the filter as URL query values. Multiple values for one key
// are joined with commas.
func (f Filter) Values() url.Values {
	values := url.Values{}

	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if len(f[key]) > 0 {
			values.Set(key, strings.Join(f[key], ","))
		}
	}

	return values
}

// ParseFilter parses "key=value[,value]" expressions.
func ParseFilter(expressions []string) (Filter, error) {
	filter := NewFilter()

	for _, expr := range expressions {
		key, value, ok := strings.Cut(expr, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: filter %q must be key=value", ErrConfiguration, expr)
		}

		filter.Add(strings.TrimSpace(key), strings.Split(value, ",")...)
	}

	return filter, nil
}

// RequestOptions tunes how a read is paged.
type RequestOptions struct {
	// PageSize is sent as per_page when positive.
	PageSize int
	// MaxPages caps the number of page requests. 0 means no cap.
	MaxPages int
	// StartPage is the first page requested when the endpoint pages by number.
	StartPage int
	// Cursor resumes a cursor-paged read.
	Cursor  string
	OrderBy string
	Fields  []string
}

// Query returns the paging query parameters for the first request.
func (o *RequestOptions) Query() url.Values {
	values := url.Values{}
	if o == nil {
		return values
	}

	if o.PageSize > 0 {
		values.Set("per_page", strconv.Itoa(o.PageSize))
	}

	if o.OrderBy != "" {
		values.Set("order_by", o.OrderBy)
	}

	if len(o.Fields) > 0 {
		values.Set("fields", strings.Join(o.Fields, ","))
	}

	return values
}
