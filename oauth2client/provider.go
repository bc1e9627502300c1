package oauth2client

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Provider performs the credential exchange for one grant type.
//
// Acquire must not touch any cache; callers decide what to do with the
// returned token. All failures are reported as *AuthorizationError.
type Provider interface {
	Acquire(ctx context.Context) (*Token, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*Token, error)

// Acquire calls f(ctx).
func (f ProviderFunc) Acquire(ctx context.Context) (*Token, error) {
	return f(ctx)
}

// ProviderOption configures providers created by NewProvider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	httpClient *http.Client
}

// WithHTTPClient sets the HTTP client used to reach the token endpoint.
// It defaults to http.DefaultClient.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(o *providerOptions) {
		o.httpClient = client
	}
}

// NewProvider returns the Provider strategy for cfg.GrantType.
// Grant types without an implementation yield a provider whose Acquire
// fails with KindUnsupported and never touches the network.
func NewProvider(cfg Config, opts ...ProviderOption) Provider {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.GrantType {
	case GrantClientCredentials:
		return newClientCredentialsProvider(cfg, o.httpClient)
	default:
		return unsupportedProvider{grant: cfg.GrantType}
	}
}

// clientCredentialsProvider implements the client credentials grant.
type clientCredentialsProvider struct {
	config     *clientcredentials.Config
	httpClient *http.Client
}

func newClientCredentialsProvider(cfg Config, httpClient *http.Client) *clientCredentialsProvider {
	return &clientCredentialsProvider{
		config: &clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       cfg.TokenURL(),
			Scopes:         cfg.Scopes(),
			EndpointParams: cfg.EndpointParams,
			// Credentials travel in the form body next to grant_type and scope.
			AuthStyle: oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

func (p *clientCredentialsProvider) Acquire(ctx context.Context) (*Token, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.config.Token(ctx)
	if err != nil {
		return nil, &AuthorizationError{
			Kind:   KindExchangeFailed,
			Grant:  GrantClientCredentials,
			Reason: exchangeReason(err),
			Err:    err,
		}
	}

	return tokenFromOAuth2(tok), nil
}

// exchangeReason prefers the OAuth2 error code returned by the endpoint.
func exchangeReason(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		if re.ErrorDescription != "" {
			return re.ErrorCode + ": " + re.ErrorDescription
		}
		return re.ErrorCode
	}
	return err.Error()
}

type unsupportedProvider struct {
	grant GrantType
}

func (p unsupportedProvider) Acquire(context.Context) (*Token, error) {
	return nil, &AuthorizationError{
		Kind:   KindUnsupported,
		Grant:  p.grant,
		Reason: "no token exchange is implemented for this grant type",
	}
}
