package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/wfm-client/internal/constants"
	wfmhttp "github.com/fivetwenty-io/wfm-client/internal/http"
	"github.com/fivetwenty-io/wfm-client/pkg/wfm"
)

// listPage is one decoded page of a list response.
type listPage struct {
	items []json.RawMessage
	more  bool
	// cursor continues a cursor-paged read; nextPage a number-paged one.
	cursor   string
	nextPage int
}

// executeGet fetches pages until the API reports no more, or the caller's
// page budget is spent. Filters are sent unchanged with every page; only the
// page or cursor parameter advances.
func (e *Engine) executeGet(ctx context.Context, exec *execution) error {
	options := exec.in.options

	base := exec.in.filter.Values()
	maps.Copy(base, options.Query())

	page := options.StartPage
	cursor := options.Cursor
	fetched := 0

	for {
		query := maps.Clone(base)

		switch {
		case cursor != "":
			query.Set(constants.CursorParam, cursor)
		case page > 0:
			query.Set(constants.PageParam, strconv.Itoa(page))
		}

		req := &wfmhttp.Request{
			Method: exec.descriptor.Method(wfm.OperationGet),
			Path:   exec.descriptor.Path(wfm.OperationGet, ""),
			Query:  query,
		}

		resp, err := e.exchange(ctx, exec, req)
		if resp == nil {
			return err
		}

		if err != nil {
			return fmt.Errorf("getting %s: %w", exec.descriptor.ID, err)
		}

		current, err := decodeListPage(resp.Body, exec.descriptor.Entity)
		if err != nil {
			return fmt.Errorf("decoding %s page: %w", exec.descriptor.ID, err)
		}

		fetched++

		if page == 0 {
			page = 1
		}

		exec.out.items = append(exec.out.items, current.items...)

		meta := metaFrom(resp)
		meta.Page = &wfm.PageState{HasMore: current.more, Page: page, Next: current.cursor}
		exec.out.meta = meta

		e.logger.Debug("fetched page", map[string]interface{}{
			"endpoint": exec.descriptor.ID,
			"page":     page,
			"items":    len(current.items),
			"more":     current.more,
		})

		if !exec.descriptor.SupportsPagination || !current.more {
			return nil
		}

		stuck := false

		switch {
		case current.cursor != "":
			stuck = current.cursor == cursor
			cursor = current.cursor
		case current.nextPage > 0:
			cursor = ""
			page = current.nextPage
		default:
			cursor = ""
			page++
		}

		if meta.Page.Next == "" {
			meta.Page.Next = strconv.Itoa(page)
		}

		if options.MaxPages > 0 && fetched >= options.MaxPages {
			return nil
		}

		if stuck {
			return fmt.Errorf("getting %s: cursor %q did not advance: %w", exec.descriptor.ID, cursor, wfm.ErrConfiguration)
		}
	}
}

// decodeListPage reads {"results": {"<entity>": [...]}, "more": bool,
// "cursor": "...", "next_page": n}. A bare array is a single final page.
func decodeListPage(body []byte, entity string) (*listPage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return &listPage{}, nil
	}

	if body[0] == '[' {
		var items []json.RawMessage

		err := json.Unmarshal(body, &items)
		if err != nil {
			return nil, err
		}

		return &listPage{items: items}, nil
	}

	var envelope struct {
		Results  map[string]json.RawMessage `json:"results"`
		More     bool                       `json:"more"`
		Cursor   string                     `json:"cursor"`
		NextPage json.RawMessage            `json:"next_page"`
	}

	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, err
	}

	current := &listPage{more: envelope.More, cursor: envelope.Cursor}

	if raw, ok := envelope.Results[entity]; ok {
		err = json.Unmarshal(raw, &current.items)
		if err != nil {
			return nil, err
		}
	}

	next := strings.Trim(string(envelope.NextPage), `"`)
	if next != "" && next != "null" {
		if number, convErr := strconv.Atoi(next); convErr == nil {
			current.nextPage = number
		} else if current.cursor == "" {
			current.cursor = next
		}
	}

	return current, nil
}
