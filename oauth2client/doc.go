// Package oauth2client obtains and caches OAuth2 access tokens for HTTP and gRPC clients.
//
// A Config selects the grant type and the token endpoint. NewProvider turns it into a
// Provider strategy: the client-credentials grant exchanges client id, secret and scope
// with the token endpoint, every other grant type fails with an AuthorizationError of
// kind KindUnsupported without any network call.
//
// TokenCache owns at most one token. It fetches lazily, shares one in-flight exchange
// between concurrent callers, and replaces the token when a server rejects it. Tokens are
// never refreshed by a clock unless WithExpiryLeeway is set.
//
// # Features
//
//   - Validated, immutable Config (grant type must match the populated fields)
//   - Single-flight GetOrFetch, ForceRefresh and Refresh
//   - Typed AuthorizationError; errors.Is with ErrUnsupportedGrant / ErrExchangeFailed
//   - gRPC unary and stream client interceptors that refresh once on Unauthenticated
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	cache, err := oauth2client.NewTokenCacheFromConfig(oauth2client.Config{
//	    GrantType:     oauth2client.GrantClientCredentials,
//	    TokenBaseURL:  "https://auth.example.com",
//	    TokenPath:     "/oauth/v2/token",
//	    ClientID:      "client-id",
//	    ClientSecret:  "client-secret",
//	    Scope:         "openid profile",
//	}, nil, oauth2client.WithLoggingEnabled())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(cache.UnaryClientInterceptor()),
//	    grpc.WithStreamInterceptor(cache.StreamClientInterceptor()),
//	)
//
// # Notes
//
//   - Authorized reports that a token was obtained, not that it is still valid.
//   - A failed refresh leaves the cache unauthorized so the next call fetches again.
package oauth2client
