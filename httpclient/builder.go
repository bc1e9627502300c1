package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/AmmannChristian/go-oauth2http/internal/tlsconfig"
	"github.com/AmmannChristian/go-oauth2http/oauth2client"
)

// Builder provides a fluent interface for constructing authorized HTTP
// clients with TLS/mTLS support.
type Builder struct {
	// OAuth2 configuration
	tokenCache   *oauth2client.TokenCache
	oauth2Config *oauth2client.Config
	cacheOpts    []oauth2client.Option

	// Target configuration
	baseAddress string
	query       url.Values

	tls tlsconfig.Options

	// HTTP client configuration
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
	requestID       bool
	logger          oauth2client.Logger
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         30 * time.Second, // Default 30s timeout
		followRedirects: true,
	}
}

// WithTokenCache shares an existing token cache, e.g. with a gRPC connection.
func (b *Builder) WithTokenCache(cache *oauth2client.TokenCache) *Builder {
	b.tokenCache = cache
	return b
}

// WithOAuth2 creates a token cache from cfg at Build time. Token requests use
// the same TLS settings as API requests. It is ignored when WithTokenCache
// is also used.
func (b *Builder) WithOAuth2(cfg oauth2client.Config, opts ...oauth2client.Option) *Builder {
	b.oauth2Config = &cfg
	b.cacheOpts = opts
	return b
}

// WithBaseAddress sets the address relative request URIs are resolved against.
// query is added to every target URL unless the request already sets the key.
func (b *Builder) WithBaseAddress(base string, query url.Values) *Builder {
	b.baseAddress = base
	b.query = query
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tls.CAFile = caFile
	b.tls.CertFile = certFile
	b.tls.KeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
// This should only be used for testing or development purposes.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tls.InsecureSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 30 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets a custom base transport.
// This is useful for adding custom middleware or using a custom connection pool.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
// By default, the client follows up to 10 redirects.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// WithRequestID tags every request with an X-Request-Id header.
func (b *Builder) WithRequestID() *Builder {
	b.requestID = true
	return b
}

// WithLogger logs token and reauthorization events.
func (b *Builder) WithLogger(logger oauth2client.Logger) *Builder {
	b.logger = logger
	return b
}

// Build constructs the Client with the configured options.
func (b *Builder) Build() (*Client, error) {
	var baseURL *url.URL
	if b.baseAddress != "" {
		u, err := url.Parse(b.baseAddress)
		if err != nil {
			return nil, fmt.Errorf("httpclient: invalid base address: %w", err)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("httpclient: base address %q must be absolute", b.baseAddress)
		}
		baseURL = u
	}

	httpClient, err := b.BuildHTTPClient()
	if err != nil {
		return nil, err
	}

	return NewClient(httpClient, baseURL, b.query), nil
}

// BuildHTTPClient constructs a plain *http.Client whose transport authorizes
// requests. An error is returned when neither WithTokenCache nor WithOAuth2
// was used, or when the configuration is invalid.
func (b *Builder) BuildHTTPClient() (*http.Client, error) {
	transport, err := b.buildBaseTransport()
	if err != nil {
		return nil, err
	}

	cache := b.tokenCache
	if cache == nil {
		if b.oauth2Config == nil {
			return nil, errors.New("httpclient: WithTokenCache or WithOAuth2 is required")
		}

		opts := b.cacheOpts
		if b.logger != nil {
			opts = append([]oauth2client.Option{oauth2client.WithLogger(b.logger)}, opts...)
		}

		tokenClient := &http.Client{Transport: transport, Timeout: b.timeout}
		cache, err = oauth2client.NewTokenCacheFromConfig(*b.oauth2Config,
			[]oauth2client.ProviderOption{oauth2client.WithHTTPClient(tokenClient)}, opts...)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
	}

	var transportOpts []TransportOption
	if b.logger != nil {
		transportOpts = append(transportOpts, WithTransportLogger(b.logger))
	}
	if b.requestID {
		transportOpts = append(transportOpts, WithRequestID())
	}

	client := &http.Client{
		Transport: NewTransport(cache, transport, transportOpts...),
		Timeout:   b.timeout,
	}

	// Configure redirect policy
	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// buildBaseTransport returns the unauthorized transport shared by token and API requests.
func (b *Builder) buildBaseTransport() (http.RoundTripper, error) {
	if b.baseTransport != nil {
		return b.baseTransport, nil
	}

	httpTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// Fallback to whatever default transport is configured (e.g., a test stub)
		return http.DefaultTransport, nil
	}
	httpTransport = httpTransport.Clone()

	// The zero Options still yield TLS 1.2+ with system roots.
	tlsConfig, err := b.tls.Build()
	if err != nil {
		return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
	}
	httpTransport.TLSClientConfig = tlsConfig

	return httpTransport, nil
}
