// Package wfm provides types, interfaces, and helpers for working with the
// workforce-management REST API.
//
// # Overview
//
// The wfm package defines the domain entities (Employee, Department, Shift,
// Timesheet, ...), the result model returned by every operation, and the
// resource client interfaces. A concrete implementation of these clients is
// provided by the wfmclient package, which wires configuration, transport,
// authentication, and the operation-execution pipeline.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/wfm-client/pkg/wfm"
//	  "github.com/fivetwenty-io/wfm-client/pkg/wfmclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := wfmclient.New(ctx, &wfm.Config{
//	    APIEndpoint: "https://api.example.com",
//	    TenantID:    "acme",
//	    AccessToken: "token",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  employees, err := cli.Employees().Get(ctx, wfm.NewFilter().Add("status", "active"), nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = employees.Items
//	}
//
// # Bulk operations and outcomes
//
// Create, Update and Delete accept any number of items. The client splits
// them into chunks the endpoint accepts and reports one Outcome per input
// item, keyed by the item's identifier, or by PositionKey(i) when the item at
// index i has no identifier yet. Two items sharing an identifier are rejected
// with a ConfigurationError. A partially failed bulk operation is not an
// error: inspect Results.Failures or Results.Err.
//
// # Asynchronous variants
//
// Every operation has an Async variant returning a Future. The synchronous
// variants run the asynchronous ones on a dedicated goroutine and wait for
// them, so they are safe to call from callback-driven code.
//
// # Errors
//
// API errors are represented by APIError and ErrorResponse. Pipeline failures
// use ConfigurationError, TransientError, RateLimitedError and
// ExhaustedRetriesError, each matchable with errors.Is against the exported
// sentinels.
package wfm
