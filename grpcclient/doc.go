// Package grpcclient provides a fluent builder for secure gRPC client connections authorized
// with OAuth2 bearer tokens.
//
// It defaults to TLS 1.2+ using system roots to avoid accidental plaintext connections. Calls
// carry "authorization: Bearer <token>" metadata from an oauth2client.TokenCache; a call that
// fails with codes.Unauthenticated is retried once after refreshing the token.
//
// # Features
//
//   - Token cache created from an oauth2client.Config or shared via WithTokenCache
//   - Secure-by-default TLS; optional custom CA and mTLS
//   - Plaintext dialing via WithInsecure for loopback sidecars and tests
//   - Additional dial options via WithDialOptions
//
// # Quick Start
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("server.example.com:9090").
//	    WithOAuth2(oauth2client.Config{
//	        GrantType:     oauth2client.GrantClientCredentials,
//	        TokenEndpoint: "https://auth.example.com/oauth/v2/token",
//	        ClientID:      "client-id",
//	        ClientSecret:  "client-secret",
//	        Scope:         "openid profile",
//	    }).
//	    WithTLS("/path/to/ca.crt", "", "", "server.example.com").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	client := pb.NewYourServiceClient(conn)
//
// # TLS Behavior
//
// TLS is enabled by default with system CAs and TLS 1.2 minimum. WithTLS allows supplying a custom
// root CA and optional client cert/key for mTLS; both cert and key must be provided together.
// The HTTP builder in httpclient loads these files the same way. WithInsecure cannot be combined
// with WithTLS.
package grpcclient
