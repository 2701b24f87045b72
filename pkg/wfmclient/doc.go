// Package wfmclient provides the primary entry point for constructing a
// workforce-management API client that implements the wfm.Client interface.
//
// It layers configuration, HTTP transport, authentication and the operation
// pipeline on top of the types defined in the wfm package. Most applications
// import wfmclient to build a client, then use the returned wfm.Client to
// reach the per-entity clients, for example Employees(), Shifts() or
// Documents().
//
// Quick start
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
//
//	  cli, err := wfmclient.New(ctx, &wfm.Config{
//	    APIEndpoint:  "https://api.example.com",
//	    TenantID:     "acme",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  results, err := cli.Employees().Create(ctx, []wfm.Employee{{FirstName: "Ada", LastName: "Lovelace"}})
//	  if err != nil { log.Fatal(err) }
//
//	  for _, failure := range results.Failures() {
//	    log.Printf("item %s: %s", failure.Key, failure.Message)
//	  }
//	}
//
// # Token endpoint discovery
//
// When client credentials are provided and Config.TokenURL is empty, New reads
// the authorization server metadata published at
// /.well-known/oauth-authorization-server and uses its token_endpoint. APIs
// that do not publish metadata fall back to /oauth/token on the API endpoint.
//
// # Helpers
//
// The package also provides convenience constructors NewWithToken and
// NewWithClientCredentials that wrap New with the appropriate configuration.
package wfmclient
