// Package registry maps endpoint identifiers to their immutable descriptors.
package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

//go:embed endpoints.yaml
var catalogue []byte

// IDPlaceholder is replaced by the escaped item identifier in path templates.
const IDPlaceholder = "{id}"

// EndpointDescriptor describes how an endpoint is addressed and batched.
type EndpointDescriptor struct {
	ID                 string                       `yaml:"id"`
	BasePath           string                       `yaml:"base_path"`
	Entity             string                       `yaml:"entity"`
	SupportsBulk       bool                         `yaml:"supports_bulk"`
	MaxItemsPerCall    int                          `yaml:"max_items_per_call"`
	SupportsPagination bool                         `yaml:"supports_pagination"`
	Methods            map[wfm.OperationKind]string `yaml:"methods"`
	Paths              map[wfm.OperationKind]string `yaml:"paths"`
}

// Supports reports whether the endpoint accepts the operation kind.
func (d EndpointDescriptor) Supports(kind wfm.OperationKind) bool {
	_, ok := d.Methods[kind]

	return ok
}

// Method returns the HTTP method used for kind.
func (d EndpointDescriptor) Method(kind wfm.OperationKind) string {
	return d.Methods[kind]
}

// Path returns the request path for kind. A non-empty id addresses a single
// entity: it fills the {id} placeholder of a configured template, or is
// appended to the base path.
func (d EndpointDescriptor) Path(kind wfm.OperationKind, id string) string {
	if template, ok := d.Paths[kind]; ok {
		return strings.ReplaceAll(template, IDPlaceholder, url.PathEscape(id))
	}

	if id == "" {
		return d.BasePath
	}

	return strings.TrimSuffix(d.BasePath, "/") + "/" + url.PathEscape(id)
}

// ChunkSize returns how many items one write exchange may carry.
func (d EndpointDescriptor) ChunkSize() int {
	if !d.SupportsBulk {
		return 1
	}

	return d.MaxItemsPerCall
}

// Info returns the public description of the endpoint.
func (d EndpointDescriptor) Info() wfm.EndpointInfo {
	info := wfm.EndpointInfo{
		ID:                 d.ID,
		BasePath:           d.BasePath,
		Entity:             d.Entity,
		SupportsBulk:       d.SupportsBulk,
		MaxItemsPerCall:    d.MaxItemsPerCall,
		SupportsPagination: d.SupportsPagination,
	}

	for _, kind := range wfm.OperationKinds() {
		if d.Supports(kind) {
			info.Operations = append(info.Operations, kind)
		}
	}

	return info
}

func (d EndpointDescriptor) clone() EndpointDescriptor {
	d.Methods = maps.Clone(d.Methods)
	d.Paths = maps.Clone(d.Paths)

	return d
}

func (d EndpointDescriptor) validate() error {
	if d.ID == "" {
		return &wfm.ConfigurationError{Reason: "endpoint id is required"}
	}

	if !strings.HasPrefix(d.BasePath, "/") {
		return &wfm.ConfigurationError{Endpoint: d.ID, Reason: "base path must start with /"}
	}

	if d.Entity == "" {
		return &wfm.ConfigurationError{Endpoint: d.ID, Reason: "entity name is required"}
	}

	if d.SupportsBulk && d.MaxItemsPerCall <= 0 {
		return &wfm.ConfigurationError{
			Endpoint: d.ID,
			Reason:   fmt.Sprintf("bulk endpoint needs a positive max_items_per_call, got %d", d.MaxItemsPerCall),
		}
	}

	if len(d.Methods) == 0 {
		return &wfm.ConfigurationError{Endpoint: d.ID, Reason: "no operations configured"}
	}

	for kind, method := range d.Methods {
		if _, err := wfm.ParseOperationKind(string(kind)); err != nil {
			return &wfm.ConfigurationError{Endpoint: d.ID, Reason: err.Error()}
		}

		if !validMethod(method) {
			return &wfm.ConfigurationError{Endpoint: d.ID, Reason: fmt.Sprintf("invalid method %q for %s", method, kind)}
		}
	}

	return nil
}

func validMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Registry is a read-only set of endpoint descriptors.
type Registry struct {
	endpoints map[string]EndpointDescriptor
}

type catalogueFile struct {
	Endpoints []EndpointDescriptor `yaml:"endpoints"`
}

// New builds a registry from descriptors, rejecting invalid or duplicate ones.
func New(descriptors ...EndpointDescriptor) (*Registry, error) {
	registry := &Registry{endpoints: make(map[string]EndpointDescriptor, len(descriptors))}

	for _, descriptor := range descriptors {
		descriptor = descriptor.clone()
		for kind, method := range descriptor.Methods {
			descriptor.Methods[kind] = strings.ToUpper(method)
		}

		err := descriptor.validate()
		if err != nil {
			return nil, err
		}

		if _, exists := registry.endpoints[descriptor.ID]; exists {
			return nil, &wfm.ConfigurationError{Endpoint: descriptor.ID, Reason: "duplicate endpoint id"}
		}

		registry.endpoints[descriptor.ID] = descriptor
	}

	return registry, nil
}

// Load reads a YAML catalogue of the form {endpoints: [...]}.
func Load(r io.Reader) (*Registry, error) {
	var file catalogueFile

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	err := decoder.Decode(&file)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parsing endpoint catalogue: %w", wfm.ErrConfiguration, err)
	}

	return New(file.Endpoints...)
}

// Resolve returns the descriptor registered under id.
func (r *Registry) Resolve(id string) (EndpointDescriptor, error) {
	descriptor, ok := r.endpoints[id]
	if !ok {
		return EndpointDescriptor{}, &wfm.ConfigurationError{Endpoint: id, Reason: wfm.ErrUnknownEndpoint.Error()}
	}

	return descriptor.clone(), nil
}

// List returns every descriptor ordered by id.
func (r *Registry) List() []EndpointDescriptor {
	descriptors := make([]EndpointDescriptor, 0, len(r.endpoints))
	for _, descriptor := range r.endpoints {
		descriptors = append(descriptors, descriptor.clone())
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].ID < descriptors[j].ID
	})

	return descriptors
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	errDefault      error
)

// Default returns the process-wide registry built from the embedded
// catalogue. It is loaded once.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, errDefault = Load(bytes.NewReader(catalogue))
	})

	return defaultRegistry, errDefault
}
