package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
	wfmhttp "github.com/fivetwenty-io/wfm-client/internal/http"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// chunk is a contiguous slice of the input sent in one exchange.
type chunk struct {
	start int
	items []pendingItem
}

// chunkItems splits items into ceil(len/size) chunks of at most size items.
func chunkItems(items []pendingItem, size int) []chunk {
	if size <= 0 {
		size = 1
	}

	chunks := make([]chunk, 0, (len(items)+size-1)/size)

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, chunk{start: start, items: items[start:end]})
	}

	return chunks
}

func (e *Engine) executeWrite(ctx context.Context, kind wfm.OperationKind, exec *execution) error {
	items := exec.in.items

	err := rejectDuplicates(exec, items)
	if err != nil {
		return err
	}

	if kind == wfm.OperationUpdate {
		items = e.requireIdentifiers(exec, items)
	}

	chunks := chunkItems(items, exec.descriptor.ChunkSize())

	for index, current := range chunks {
		e.logger.Debug("sending chunk", map[string]interface{}{
			"endpoint": exec.descriptor.ID,
			"kind":     string(kind),
			"chunk":    index + 1,
			"chunks":   len(chunks),
			"items":    len(current.items),
		})

		if exec.descriptor.SupportsBulk {
			err = e.sendBulkChunk(ctx, kind, exec, current)
		} else {
			err = e.sendSingle(ctx, kind, exec, current.items[0])
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// rejectDuplicates fails the operation before any exchange when two items
// share an identifier, since their outcomes could not be told apart.
func rejectDuplicates(exec *execution, items []pendingItem) error {
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		if item.id == "" {
			continue
		}

		if _, ok := seen[item.id]; ok {
			return &wfm.ConfigurationError{
				Endpoint: exec.descriptor.ID,
				Reason:   fmt.Sprintf("%s: %q", wfm.ErrDuplicateIdentifier, item.id),
			}
		}

		seen[item.id] = struct{}{}
	}

	return nil
}

// requireIdentifiers records a failure for every update item without an id
// and returns the rest.
func (e *Engine) requireIdentifiers(exec *execution, items []pendingItem) []pendingItem {
	valid := make([]pendingItem, 0, len(items))

	for _, item := range items {
		if item.id == "" {
			exec.out.outcomes[item.key] = rawOutcome{err: &wfm.ItemError{
				Key:     item.key,
				Code:    wfm.ErrorCodeMissingIdentifier,
				Message: "update requires an item identifier",
			}}

			continue
		}

		valid = append(valid, item)
	}

	return valid
}

func (e *Engine) sendBulkChunk(ctx context.Context, kind wfm.OperationKind, exec *execution, current chunk) error {
	bodies := make([]json.RawMessage, len(current.items))
	for i, item := range current.items {
		bodies[i] = item.body
	}

	req := &wfmhttp.Request{
		Method: exec.descriptor.Method(kind),
		Path:   exec.descriptor.Path(kind, ""),
		Body:   map[string]interface{}{exec.descriptor.Entity: bodies},
	}

	resp, err := e.exchange(ctx, exec, req)
	if resp == nil {
		return err
	}

	exec.out.meta = metaFrom(resp)

	e.applyBulkResponse(exec, current, resp, err, true)

	return nil
}

func (e *Engine) sendSingle(ctx context.Context, kind wfm.OperationKind, exec *execution, item pendingItem) error {
	req := &wfmhttp.Request{
		Method: exec.descriptor.Method(kind),
		Path:   exec.descriptor.Path(kind, item.id),
		Body:   item.body,
	}

	if kind == wfm.OperationCreate {
		req.Path = exec.descriptor.Path(kind, "")
	}

	resp, err := e.exchange(ctx, exec, req)
	if resp == nil {
		return err
	}

	exec.out.meta = metaFrom(resp)

	if err != nil {
		exec.out.outcomes[item.key] = failureFrom(item.key, err)

		return nil
	}

	entity := unwrapEntity(resp.Body, exec.descriptor.Entity)
	if len(entity) == 0 {
		entity = item.body
	}

	exec.out.items = append(exec.out.items, entity)
	exec.out.outcomes[item.key] = rawOutcome{entity: entity}

	return nil
}

func (e *Engine) executeDelete(ctx context.Context, exec *execution) error {
	items := make([]pendingItem, len(exec.in.ids))
	for i, id := range exec.in.ids {
		items[i] = pendingItem{key: id, id: id}
	}

	err := rejectDuplicates(exec, items)
	if err != nil {
		return err
	}

	for _, current := range chunkItems(items, exec.descriptor.ChunkSize()) {
		if exec.descriptor.SupportsBulk {
			err = e.sendBulkDelete(ctx, exec, current)
		} else {
			err = e.sendSingleDelete(ctx, exec, current.items[0])
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) sendBulkDelete(ctx context.Context, exec *execution, current chunk) error {
	ids := make([]string, len(current.items))
	for i, item := range current.items {
		ids[i] = item.id
	}

	req := &wfmhttp.Request{
		Method: exec.descriptor.Method(wfm.OperationDelete),
		Path:   exec.descriptor.Path(wfm.OperationDelete, ""),
		Body:   map[string]interface{}{constants.EnvelopeIDs: ids},
	}

	resp, err := e.exchange(ctx, exec, req)
	if resp == nil {
		return err
	}

	exec.out.meta = metaFrom(resp)

	e.applyBulkResponse(exec, current, resp, err, false)

	return nil
}

func (e *Engine) sendSingleDelete(ctx context.Context, exec *execution, item pendingItem) error {
	req := &wfmhttp.Request{
		Method: exec.descriptor.Method(wfm.OperationDelete),
		Path:   exec.descriptor.Path(wfm.OperationDelete, item.id),
	}

	resp, err := e.exchange(ctx, exec, req)
	if resp == nil {
		return err
	}

	exec.out.meta = metaFrom(resp)

	if err != nil {
		exec.out.outcomes[item.key] = failureFrom(item.key, err)

		return nil
	}

	exec.out.outcomes[item.key] = rawOutcome{}

	return nil
}

// applyBulkResponse records one outcome per chunk item. Entries are looked up
// by item id first, then by the item's index within the chunk unless that
// index is also the id of an item in the chunk. A client
// error without per-item entries fails the whole chunk. requireEntity marks
// items absent from a successful response as failed; deletes answered with
// an empty body succeed.
func (e *Engine) applyBulkResponse(exec *execution, current chunk, resp *wfmhttp.Response, respErr error, requireEntity bool) {
	entries, ok := decodeBulkEntries(resp.Body, exec.descriptor.Entity)

	if !ok && respErr != nil {
		for _, item := range current.items {
			exec.out.outcomes[item.key] = failureFrom(item.key, respErr)
		}

		return
	}

	ids := make(map[string]struct{}, len(current.items))
	for _, item := range current.items {
		if item.id != "" {
			ids[item.id] = struct{}{}
		}
	}

	for local, item := range current.items {
		entry, found := entries.lookup(item.id, local, ids)

		switch {
		case found && entry.err != nil:
			entry.err.Key = item.key
			exec.out.outcomes[item.key] = rawOutcome{err: entry.err}
		case found:
			if requireEntity {
				exec.out.items = append(exec.out.items, entry.entity)
			}

			exec.out.outcomes[item.key] = rawOutcome{entity: entry.entity}
		case !ok && !requireEntity:
			exec.out.outcomes[item.key] = rawOutcome{}
		default:
			exec.out.outcomes[item.key] = rawOutcome{err: &wfm.ItemError{
				Key:     item.key,
				Code:    wfm.ErrorCodeMissingResult,
				Message: fmt.Sprintf("response carried no result for item at position %d", current.start+local),
			}}
		}
	}
}

type bulkEntry struct {
	entity json.RawMessage
	err    *wfm.ItemError
}

type bulkEntries struct {
	byKey   map[string]bulkEntry
	ordered []bulkEntry
}

func (b bulkEntries) lookup(id string, local int, ids map[string]struct{}) (bulkEntry, bool) {
	if b.byKey != nil {
		if id != "" {
			if entry, ok := b.byKey[id]; ok {
				return entry, true
			}
		}

		index := strconv.Itoa(local)
		if _, taken := ids[index]; taken {
			return bulkEntry{}, false
		}

		entry, ok := b.byKey[index]

		return entry, ok
	}

	if local < len(b.ordered) {
		return b.ordered[local], true
	}

	return bulkEntry{}, false
}

// decodeBulkEntries reads {"results": {"<entity>": {...} | [...]}}. The
// second return is false when the body carries no such envelope.
func decodeBulkEntries(body []byte, entity string) (bulkEntries, bool) {
	var envelope map[string]json.RawMessage
	if json.Unmarshal(body, &envelope) != nil {
		return bulkEntries{}, false
	}

	var results map[string]json.RawMessage
	if json.Unmarshal(envelope[constants.EnvelopeResults], &results) != nil {
		return bulkEntries{}, false
	}

	raw, ok := results[entity]
	if !ok {
		return bulkEntries{}, false
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []json.RawMessage
		if json.Unmarshal(raw, &list) != nil {
			return bulkEntries{}, false
		}

		ordered := make([]bulkEntry, len(list))
		for i, element := range list {
			ordered[i] = classifyEntry(element)
		}

		return bulkEntries{ordered: ordered}, true
	}

	var keyed map[string]json.RawMessage
	if json.Unmarshal(raw, &keyed) != nil {
		return bulkEntries{}, false
	}

	byKey := make(map[string]bulkEntry, len(keyed))
	for key, element := range keyed {
		byKey[key] = classifyEntry(element)
	}

	return bulkEntries{byKey: byKey}, true
}

// classifyEntry tells an entity from an item error. Errors come either as
// {"error": {"code", "message"}} or as a bare {"code", "message"} object.
func classifyEntry(element json.RawMessage) bulkEntry {
	var fields map[string]json.RawMessage
	if json.Unmarshal(element, &fields) != nil {
		return bulkEntry{entity: element}
	}

	if raw, ok := fields[constants.EnvelopeError]; ok {
		itemErr := &wfm.ItemError{}
		if json.Unmarshal(raw, itemErr) == nil && (itemErr.Code != "" || itemErr.Message != "") {
			return bulkEntry{err: itemErr}
		}
	}

	_, hasCode := fields["code"]
	_, hasMessage := fields["message"]
	_, hasID := fields["id"]

	if hasCode && hasMessage && !hasID && len(fields) == 2 {
		itemErr := &wfm.ItemError{}
		if json.Unmarshal(element, itemErr) == nil {
			return bulkEntry{err: itemErr}
		}
	}

	return bulkEntry{entity: element}
}

// unwrapEntity returns the entity of a single-entity response, accepting
// both a bare object and one enveloped under the entity name.
func unwrapEntity(body []byte, entity string) json.RawMessage {
	var envelope map[string]json.RawMessage
	if json.Unmarshal(body, &envelope) == nil {
		if inner, ok := envelope[entity]; ok && len(envelope) == 1 {
			return inner
		}
	}

	return json.RawMessage(bytes.TrimSpace(body))
}

func failureFrom(key string, err error) rawOutcome {
	itemErr := &wfm.ItemError{Key: key, Code: wfm.ErrorCodeValidation, Message: err.Error()}

	if apiErr := wfmhttp.APIErrorFrom(err); apiErr != nil {
		itemErr.Code = apiErr.Code
		itemErr.Message = apiErr.Message
	}

	return rawOutcome{err: itemErr}
}

func metaFrom(resp *wfmhttp.Response) wfm.ResultsMeta {
	meta := wfm.ResultsMeta{RequestID: resp.RequestID}

	state := parseRateLimit(resp.Headers)
	if state.Known() {
		meta.RateLimit = &state
	}

	return meta
}
