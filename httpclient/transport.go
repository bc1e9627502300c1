package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/AmmannChristian/go-oauth2http/oauth2client"
)

// RequestIDHeader is set by WithRequestID. The retry carries the same id.
const RequestIDHeader = "X-Request-Id"

// Transport is an http.RoundTripper that authorizes outgoing requests with
// tokens from a TokenCache.
//
// Every request is sent with "Authorization: Bearer <token>". When the server
// answers 401 Unauthorized the cache is refreshed and the request is sent one
// more time; whatever that second attempt returns is handed to the caller.
// Any other status, including other 4xx and 5xx codes, is returned unchanged.
// Redirects followed by http.Client keep the token only while they stay on
// the original host.
type Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Tokens provides OAuth2 access tokens.
	Tokens *oauth2client.TokenCache

	logger    oauth2client.Logger
	requestID bool
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithTransportLogger logs reauthorization events.
func WithTransportLogger(logger oauth2client.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithRequestID adds an X-Request-Id header to requests that lack one.
func WithRequestID() TransportOption {
	return func(t *Transport) {
		t.requestID = true
	}
}

// NewTransport creates a new Transport with the given token cache.
// The base transport defaults to http.DefaultTransport if not specified.
func NewTransport(tokens *oauth2client.TokenCache, base http.RoundTripper, opts ...TransportOption) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	t := &Transport{
		Base:   base,
		Tokens: tokens,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
//
// No request reaches the base transport before a token is available; a
// failed token fetch is returned as is. The request body is replayed for the
// retry, buffering it in memory when req.GetBody is nil.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Tokens == nil {
		closeRequestBody(req)
		return nil, errors.New("httpclient: TokenCache is nil")
	}

	// Redirect hops to another host go out without the bearer token.
	if !sameHostAsOrigin(req) {
		return t.base().RoundTrip(req)
	}

	ctx := req.Context()

	tok, err := t.Tokens.GetOrFetch(ctx)
	if err != nil {
		closeRequestBody(req)
		return nil, err
	}

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	requestID := ""
	if t.requestID && req.Header.Get(RequestIDHeader) == "" {
		requestID = uuid.NewString()
	}

	first, err := authorizedClone(req, tok, getBody, requestID)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	discard(resp)

	// A cancelled caller gets no second attempt.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.logf("httpclient: %s %s returned 401, reauthorizing", req.Method, req.URL.Redacted())

	tok, err = t.Tokens.Refresh(ctx, tok)
	if err != nil {
		return nil, err
	}

	second, err := authorizedClone(req, tok, getBody, requestID)
	if err != nil {
		return nil, err
	}

	resp, err = t.base().RoundTrip(second)
	if err == nil {
		t.logf("httpclient: retried %s %s: %s", req.Method, req.URL.Redacted(), resp.Status)
	}
	return resp, err
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *Transport) logf(format string, args ...any) {
	if t.logger != nil {
		t.logger.Printf(format, args...)
	}
}

// authorizedClone copies req with a fresh body and the bearer header set.
func authorizedClone(req *http.Request, tok *oauth2client.Token, getBody func() (io.ReadCloser, error), requestID string) (*http.Request, error) {
	clone := req.Clone(req.Context())

	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("httpclient: rewind request body: %w", err)
		}
		clone.Body = body
		clone.GetBody = getBody
	}

	clone.Header.Set("Authorization", tok.AuthorizationHeader())
	if requestID != "" {
		clone.Header.Set(RequestIDHeader, requestID)
	}

	return clone, nil
}

// replayableBody returns a function producing fresh copies of the request
// body, or nil for requests without one. The original body is consumed and
// closed when it has to be buffered.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		// Body is unread at this point; use it for the first attempt.
		first := req.Body
		used := false
		return func() (io.ReadCloser, error) {
			if !used {
				used = true
				return first, nil
			}
			return req.GetBody()
		}, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("httpclient: buffer request body: %w", err)
	}

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

// sameHostAsOrigin reports whether req targets the host of the request that
// started its redirect chain. http.Client links each hop to the previous one
// through req.Response.
func sameHostAsOrigin(req *http.Request) bool {
	origin := req
	for origin.Response != nil {
		if origin.Response.Request == nil {
			return false
		}
		origin = origin.Response.Request
	}
	return strings.EqualFold(origin.URL.Host, req.URL.Host)
}

func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

// discard drains a bounded amount of resp.Body so the connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
