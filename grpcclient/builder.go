package grpcclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/AmmannChristian/go-oauth2http/internal/tlsconfig"
	"github.com/AmmannChristian/go-oauth2http/oauth2client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Builder assembles a *grpc.ClientConn whose calls carry a bearer token from
// an oauth2client.TokenCache.
type Builder struct {
	target string

	tokens      *oauth2client.TokenCache
	oauth2      *oauth2client.Config
	cacheOpts   []oauth2client.Option
	tokenClient *http.Client
	logger      oauth2client.Logger

	tls       tlsconfig.Options
	plaintext bool

	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the dial target, e.g. "orders.example.com:9090".
func (b *Builder) WithAddress(target string) *Builder {
	b.target = target
	return b
}

// WithOAuth2 creates a token cache from cfg at Build time.
func (b *Builder) WithOAuth2(cfg oauth2client.Config, opts ...oauth2client.Option) *Builder {
	b.oauth2 = &cfg
	b.cacheOpts = opts
	return b
}

// WithTokenCache authorizes calls with an existing cache, e.g. one shared
// with an httpclient.Client. It takes precedence over WithOAuth2.
func (b *Builder) WithTokenCache(cache *oauth2client.TokenCache) *Builder {
	b.tokens = cache
	return b
}

// WithTokenHTTPClient sets the client used for token endpoint requests made
// by the cache that WithOAuth2 creates.
func (b *Builder) WithTokenHTTPClient(client *http.Client) *Builder {
	b.tokenClient = client
	return b
}

// WithLogger logs token events of the cache that WithOAuth2 creates.
func (b *Builder) WithLogger(logger oauth2client.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTLS configures server verification and optional mTLS.
// certFile and keyFile must be set together; serverName overrides SNI.
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tls = tlsconfig.Options{
		CAFile:     caFile,
		CertFile:   certFile,
		KeyFile:    keyFile,
		ServerName: serverName,
	}
	return b
}

// WithInsecure dials without TLS. Bearer tokens then travel in plaintext,
// so keep it to loopback sidecars and tests.
func (b *Builder) WithInsecure() *Builder {
	b.plaintext = true
	return b
}

// WithDialOptions adds custom gRPC dial options, applied last.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build creates the connection. grpc.NewClient connects lazily and the token
// is fetched on the first call, so no network I/O happens here.
func (b *Builder) Build() (*grpc.ClientConn, error) {
	if b.target == "" {
		return nil, errors.New("grpcclient: server address is required")
	}

	cache, err := b.tokenCache()
	if err != nil {
		return nil, err
	}

	creds, err := b.transportCredentials()
	if err != nil {
		return nil, err
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithUnaryInterceptor(cache.UnaryClientInterceptor()),
		grpc.WithStreamInterceptor(cache.StreamClientInterceptor()),
	}, b.dialOpts...)

	conn, err := grpc.NewClient(b.target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}
	return conn, nil
}

func (b *Builder) tokenCache() (*oauth2client.TokenCache, error) {
	if b.tokens != nil {
		return b.tokens, nil
	}
	if b.oauth2 == nil {
		return nil, errors.New("grpcclient: WithTokenCache or WithOAuth2 is required")
	}

	var providerOpts []oauth2client.ProviderOption
	if b.tokenClient != nil {
		providerOpts = append(providerOpts, oauth2client.WithHTTPClient(b.tokenClient))
	}
	opts := b.cacheOpts
	if b.logger != nil {
		opts = append([]oauth2client.Option{oauth2client.WithLogger(b.logger)}, opts...)
	}

	cache, err := oauth2client.NewTokenCacheFromConfig(*b.oauth2, providerOpts, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: %w", err)
	}
	return cache, nil
}

func (b *Builder) transportCredentials() (credentials.TransportCredentials, error) {
	if b.plaintext {
		if b.tls != (tlsconfig.Options{}) {
			return nil, errors.New("grpcclient: WithInsecure and WithTLS cannot be combined")
		}
		return insecure.NewCredentials(), nil
	}

	cfg, err := b.tls.Build()
	if err != nil {
		return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
	}
	return credentials.NewTLS(cfg), nil
}
