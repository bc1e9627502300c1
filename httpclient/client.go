package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// CompletionOption controls when Send returns.
type CompletionOption int

const (
	// ResponseContentRead returns after the whole body has been read into memory.
	ResponseContentRead CompletionOption = iota
	// ResponseHeadersRead returns as soon as the headers arrived; the caller
	// streams the body and must close it.
	ResponseHeadersRead
)

// Client sends authorized requests. Relative request URIs are resolved against
// the base address, and the configured query parameters are added to every
// target URL. Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	query      url.Values

	mu            sync.Mutex
	pending       context.Context
	cancelPending context.CancelFunc
}

// NewClient wraps httpClient. Its Transport is expected to be a *Transport
// (Builder takes care of that). baseURL may be nil.
func NewClient(httpClient *http.Client, baseURL *url.URL, query url.Values) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	pending, cancel := context.WithCancel(context.Background())
	return &Client{
		httpClient:    httpClient,
		baseURL:       baseURL,
		query:         query,
		pending:       pending,
		cancelPending: cancel,
	}
}

// HTTPClient returns the underlying *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Get sends a GET request to uri.
func (c *Client) Get(ctx context.Context, uri string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, uri, "", nil, ResponseContentRead)
}

// GetStream sends a GET request and returns as soon as the headers arrived.
func (c *Client) GetStream(ctx context.Context, uri string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, uri, "", nil, ResponseHeadersRead)
}

// Post sends a POST request with the given body.
func (c *Client) Post(ctx context.Context, uri, contentType string, body io.Reader) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, uri, contentType, body, ResponseContentRead)
}

// Put sends a PUT request with the given body.
func (c *Client) Put(ctx context.Context, uri, contentType string, body io.Reader) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, uri, contentType, body, ResponseContentRead)
}

// Patch sends a PATCH request with the given body.
func (c *Client) Patch(ctx context.Context, uri, contentType string, body io.Reader) (*http.Response, error) {
	return c.send(ctx, http.MethodPatch, uri, contentType, body, ResponseContentRead)
}

// Delete sends a DELETE request to uri.
func (c *Client) Delete(ctx context.Context, uri string) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, uri, "", nil, ResponseContentRead)
}

// Do sends req and buffers the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.Send(req, ResponseContentRead)
}

// Send sends req through the authorizing transport. Non-2xx responses are
// returned as responses, not errors.
func (c *Client) Send(req *http.Request, option CompletionOption) (*http.Response, error) {
	target, err := c.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(c.pendingContext(), cancel)
	release := func() {
		stop()
		cancel()
	}

	out := req.WithContext(ctx)
	out.URL = target

	resp, err := c.httpClient.Do(out)
	if err != nil {
		release()
		return nil, err
	}

	if option == ResponseHeadersRead {
		resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
		return resp, nil
	}

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	release()
	if err != nil {
		return nil, fmt.Errorf("httpclient: read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))

	return resp, nil
}

// CancelPendingRequests cancels every request issued through c that has not
// completed yet, including bodies still being streamed. Later requests are
// not affected.
func (c *Client) CancelPendingRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPending()
	c.pending, c.cancelPending = context.WithCancel(context.Background())
}

func (c *Client) pendingContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Client) send(ctx context.Context, method, uri, contentType string, body io.Reader, option CompletionOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.Send(req, option)
}

// resolve applies the base address and the default query parameters.
func (c *Client) resolve(u *url.URL) (*url.URL, error) {
	if u == nil {
		return nil, fmt.Errorf("httpclient: request URL is nil")
	}

	target := *u
	if !u.IsAbs() {
		if c.baseURL == nil {
			return nil, fmt.Errorf("httpclient: relative URL %q without base address", u.String())
		}
		target = *c.baseURL.ResolveReference(u)
	}

	if len(c.query) > 0 {
		target.RawQuery = appendMissingQuery(target.RawQuery, c.query)
	}

	return &target, nil
}

// appendMissingQuery appends the defaults whose keys do not occur in raw.
// raw itself is kept byte for byte.
func appendMissingQuery(raw string, defaults url.Values) string {
	// ParseQuery keeps going past malformed pairs; the keys it did read are enough.
	present, _ := url.ParseQuery(raw)

	missing := url.Values{}
	for key, values := range defaults {
		if present.Has(key) {
			continue
		}
		missing[key] = values
	}
	if len(missing) == 0 {
		return raw
	}
	if raw == "" {
		return missing.Encode()
	}
	return raw + "&" + missing.Encode()
}

// releasingBody releases the request context once the caller closes the body.
type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
