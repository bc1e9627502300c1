package oauth2client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// withAuthorization returns a context whose outgoing metadata carries tok.
// An "authorization" entry already present in ctx is replaced.
func withAuthorization(ctx context.Context, tok *Token) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	md.Set("authorization", tok.AuthorizationHeader())
	return metadata.NewOutgoingContext(ctx, md)
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that adds
// "authorization: Bearer <token>" to the outgoing metadata.
//
// If the server answers codes.Unauthenticated, the token is refreshed once and
// the call is retried once. A failed refresh is returned instead of the
// Unauthenticated status.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(cache.UnaryClientInterceptor()),
//	)
func (c *TokenCache) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		tok, err := c.GetOrFetch(ctx)
		if err != nil {
			return fmt.Errorf("oauth2client: failed to get token: %w", err)
		}

		err = invoker(withAuthorization(ctx, tok), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated || ctx.Err() != nil {
			return err
		}

		c.logf("oauth2client: %s rejected token, refreshing", method)
		tok, err = c.Refresh(ctx, tok)
		if err != nil {
			return fmt.Errorf("oauth2client: failed to refresh token: %w", err)
		}

		return invoker(withAuthorization(ctx, tok), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that adds
// the bearer token to the outgoing metadata. Stream creation failing with
// codes.Unauthenticated triggers one refresh and one retry; errors reported
// later on the stream are left to the caller.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithStreamInterceptor(cache.StreamClientInterceptor()),
//	)
func (c *TokenCache) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		tok, err := c.GetOrFetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("oauth2client: failed to get token: %w", err)
		}

		stream, err := streamer(withAuthorization(ctx, tok), desc, cc, method, opts...)
		if status.Code(err) != codes.Unauthenticated || ctx.Err() != nil {
			return stream, err
		}

		tok, err = c.Refresh(ctx, tok)
		if err != nil {
			return nil, fmt.Errorf("oauth2client: failed to refresh token: %w", err)
		}

		return streamer(withAuthorization(ctx, tok), desc, cc, method, opts...)
	}
}
