// Package httpclient sends HTTP requests authorized with OAuth2 bearer tokens.
//
// Transport is an http.RoundTripper that takes tokens from an oauth2client.TokenCache,
// sets "Authorization: Bearer <token>" on every request, and reacts to 401 Unauthorized
// by refreshing the token once and resending the request once. Other statuses are
// returned untouched. Client layers verb helpers, a base address with default query
// parameters, buffered or streamed responses, and CancelPendingRequests on top.
//
// # Features
//
//   - Lazy token fetch; no request leaves before a token is available
//   - Single refresh and single retry on 401, shared between concurrent requests
//   - Request bodies replayed for the retry
//   - Fluent Builder with TLS 1.2+ defaults, custom CA/mTLS, timeouts, redirects
//   - Optional X-Request-Id tagging
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithOAuth2(oauth2client.Config{
//	        GrantType:     oauth2client.GrantClientCredentials,
//	        TokenEndpoint: "https://auth.example.com/oauth/v2/token",
//	        ClientID:      "client-id",
//	        ClientSecret:  "client-secret",
//	        Scope:         "openid profile",
//	    }).
//	    WithBaseAddress("https://api.example.com/", nil).
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get(ctx, "data")
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewTransport(cache, nil)
//	client := &http.Client{Transport: transport}
//
// All components are safe for concurrent use.
package httpclient
