package engine

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// Operation is a single-shot unit of work the Engine can execute. It is
// implemented only by OperationContext.
type Operation interface {
	Kind() wfm.OperationKind
	EndpointID() string

	begin() error
	input() *operationInput
	complete(out *operationOutput) error
}

// pendingItem is an input item encoded for the wire.
type pendingItem struct {
	// key correlates the item with its outcome: its id, or its position key
	// in the whole input when it has none.
	key  string
	id   string
	body json.RawMessage
}

type operationInput struct {
	items    []pendingItem
	ids      []string
	filter   wfm.Filter
	options  *wfm.RequestOptions
	upload   *wfm.UploadRequest
	download *wfm.DownloadRequest
}

type rawOutcome struct {
	entity json.RawMessage
	err    *wfm.ItemError
}

type operationOutput struct {
	items       []json.RawMessage
	outcomes    map[string]rawOutcome
	meta        wfm.ResultsMeta
	content     []byte
	contentType string
}

func newOperationOutput() *operationOutput {
	return &operationOutput{outcomes: map[string]rawOutcome{}}
}

// OperationContext carries the input of one operation and, once executed,
// its typed results. A context executes at most once.
type OperationContext[T any] struct {
	kind       wfm.OperationKind
	endpointID string
	in         *operationInput
	encodeErr  error
	executed   atomic.Bool

	results  *wfm.Results[T]
	download *wfm.Download
}

func newContext[T any](kind wfm.OperationKind, endpointID string, in *operationInput) *OperationContext[T] {
	return &OperationContext[T]{kind: kind, endpointID: endpointID, in: in}
}

// NewCreate builds a bulk create of items.
func NewCreate[T any](endpointID string, items []T) *OperationContext[T] {
	pending, err := encodeItems(items)
	op := newContext[T](wfm.OperationCreate, endpointID, &operationInput{items: pending})
	op.encodeErr = err

	return op
}

// NewUpdate builds a bulk update of items. Items must carry an identifier.
func NewUpdate[T any](endpointID string, items []T) *OperationContext[T] {
	pending, err := encodeItems(items)
	op := newContext[T](wfm.OperationUpdate, endpointID, &operationInput{items: pending})
	op.encodeErr = err

	return op
}

// NewDelete builds a bulk delete of ids.
func NewDelete[T any](endpointID string, ids []string) *OperationContext[T] {
	return newContext[T](wfm.OperationDelete, endpointID, &operationInput{ids: append([]string(nil), ids...)})
}

// NewGet builds a paginated read. filter and options may be nil.
func NewGet[T any](endpointID string, filter wfm.Filter, options *wfm.RequestOptions) *OperationContext[T] {
	if options == nil {
		options = &wfm.RequestOptions{}
	}

	return newContext[T](wfm.OperationGet, endpointID, &operationInput{filter: filter, options: options})
}

// NewUpload builds a multipart upload.
func NewUpload[T any](endpointID string, req *wfm.UploadRequest) *OperationContext[T] {
	return newContext[T](wfm.OperationUpload, endpointID, &operationInput{upload: req})
}

// NewDownload builds a raw content download.
func NewDownload(endpointID string, req *wfm.DownloadRequest) *OperationContext[[]byte] {
	return newContext[[]byte](wfm.OperationDownload, endpointID, &operationInput{download: req})
}

// Kind returns the operation kind.
func (o *OperationContext[T]) Kind() wfm.OperationKind {
	return o.kind
}

// EndpointID returns the endpoint the operation targets.
func (o *OperationContext[T]) EndpointID() string {
	return o.endpointID
}

// Executed reports whether the context has been handed to an engine.
func (o *OperationContext[T]) Executed() bool {
	return o.executed.Load()
}

// Results returns the typed results, or nil until execution completed.
func (o *OperationContext[T]) Results() *wfm.Results[T] {
	return o.results
}

// ResultsMeta returns the metadata of the latest exchange.
func (o *OperationContext[T]) ResultsMeta() wfm.ResultsMeta {
	if o.results != nil {
		return o.results.Meta
	}

	if o.download != nil {
		return o.download.Meta
	}

	return wfm.ResultsMeta{}
}

// RawResponseContent returns the downloaded bytes of a Download operation.
func (o *OperationContext[T]) RawResponseContent() []byte {
	if o.download == nil {
		return nil
	}

	return o.download.Content
}

// Download returns the downloaded content with its metadata.
func (o *OperationContext[T]) Download() *wfm.Download {
	return o.download
}

func (o *OperationContext[T]) begin() error {
	if !o.executed.CompareAndSwap(false, true) {
		return wfm.ErrContextAlreadyExecuted
	}

	if o.encodeErr != nil {
		return o.encodeErr
	}

	return nil
}

func (o *OperationContext[T]) input() *operationInput {
	return o.in
}

func (o *OperationContext[T]) complete(out *operationOutput) error {
	if o.kind == wfm.OperationDownload {
		o.download = &wfm.Download{
			Content:     out.content,
			ContentType: out.contentType,
			Meta:        out.meta,
		}

		return nil
	}

	results := wfm.NewResults[T]()
	results.Meta = out.meta

	for index, raw := range out.items {
		var entity T

		err := json.Unmarshal(raw, &entity)
		if err != nil {
			return fmt.Errorf("decoding %s item %d: %w", o.endpointID, index, err)
		}

		results.Items = append(results.Items, entity)
	}

	for key, outcome := range out.outcomes {
		if outcome.err != nil {
			results.Outcomes[key] = wfm.Outcome[T]{Err: outcome.err}

			continue
		}

		var entity T

		if len(outcome.entity) > 0 {
			err := json.Unmarshal(outcome.entity, &entity)
			if err != nil {
				return fmt.Errorf("decoding %s outcome %q: %w", o.endpointID, key, err)
			}
		}

		results.Outcomes[key] = wfm.Success(entity)
	}

	o.results = results

	return nil
}

func encodeItems[T any](items []T) ([]pendingItem, error) {
	pending := make([]pendingItem, 0, len(items))

	for index, item := range items {
		body, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encoding item %d: %w", index, err)
		}

		id := identifierOf(item)

		key := id
		if key == "" {
			key = wfm.PositionKey(index)
		}

		pending = append(pending, pendingItem{key: key, id: id, body: body})
	}

	return pending, nil
}

func identifierOf(item any) string {
	if identifiable, ok := item.(wfm.Identifiable); ok {
		return identifiable.GetID()
	}

	return ""
}
