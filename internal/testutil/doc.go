// Package testutil provides test helpers for go-oauth2http packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// mock OAuth2 token endpoints without real sockets, and generate self-signed certificates for TLS/mTLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1, closed on cleanup
//   - MockOAuth2Server, StaticJSONResponse, JSONResponse: stub token endpoints and count requests
//   - RoundTripFunc: inline http.RoundTripper implementations
//   - SignedJWT: access tokens carrying an "exp" claim
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
package testutil
