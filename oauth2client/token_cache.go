package oauth2client

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single token exchange.
const DefaultFetchTimeout = 30 * time.Second

const fetchKey = "token"

// Logger is an interface for optional logging in TokenCache.
// Implementations can log token fetch and refresh events if desired.
type Logger interface {
	Printf(format string, args ...any)
}

// TokenCache holds at most one access token and hands it out to concurrent
// callers. It is safe for concurrent use.
//
// A TokenCache starts unauthorized. The first GetOrFetch obtains a token from
// the Provider; ForceRefresh and Refresh replace it. Concurrent fetches and
// refreshes share a single in-flight exchange.
type TokenCache struct {
	provider Provider

	mu    sync.RWMutex
	token *Token

	group        singleflight.Group
	fetchTimeout time.Duration
	expiryLeeway time.Duration // zero disables proactive refresh
	logger       Logger        // optional logger
}

// Option is a functional option for configuring TokenCache.
type Option func(*TokenCache)

// WithLogger sets a custom logger for token fetch events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(c *TokenCache) {
		c.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
// This is a convenience option that sets the logger to log.Default().
func WithLoggingEnabled() Option {
	return func(c *TokenCache) {
		c.logger = log.Default()
	}
}

// WithFetchTimeout bounds each token exchange. Defaults to DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *TokenCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithExpiryLeeway enables proactive refresh: a cached token whose known
// expiry is closer than leeway is treated as absent by GetOrFetch.
// By default tokens are only replaced after the server rejects them.
func WithExpiryLeeway(leeway time.Duration) Option {
	return func(c *TokenCache) {
		c.expiryLeeway = leeway
	}
}

// NewTokenCache creates an unauthorized cache backed by provider.
func NewTokenCache(provider Provider, opts ...Option) *TokenCache {
	c := &TokenCache{
		provider:     provider,
		fetchTimeout: DefaultFetchTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewTokenCacheFromConfig validates cfg and returns a cache backed by the
// provider for cfg.GrantType.
func NewTokenCacheFromConfig(cfg Config, providerOpts []ProviderOption, opts ...Option) (*TokenCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewTokenCache(NewProvider(cfg, providerOpts...), opts...), nil
}

// Authorized reports whether the cache currently holds a token. It says
// nothing about whether the server still accepts that token.
func (c *TokenCache) Authorized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil
}

// Current returns the cached token, or nil when unauthorized.
func (c *TokenCache) Current() *Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Invalidate drops the cached token.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// GetOrFetch returns the cached token, fetching one first when unauthorized.
// Concurrent callers share one in-flight fetch. The caller's context bounds
// only its own wait; the shared exchange is bounded by the fetch timeout.
func (c *TokenCache) GetOrFetch(ctx context.Context) (*Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if tok := c.usable(); tok != nil {
		return tok, nil
	}

	return c.fetch(ctx, c.fresh)
}

// ForceRefresh fetches a new token regardless of the cached one. Callers that
// arrive while a fetch is in flight receive its result. On failure the cache
// is left unauthorized.
func (c *TokenCache) ForceRefresh(ctx context.Context) (*Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.fetch(ctx, nil)
}

// Refresh replaces stale, the token a server just rejected. If another
// caller already replaced it, the newer token is returned without a fetch.
func (c *TokenCache) Refresh(ctx context.Context, stale *Token) (*Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if cur := c.Current(); cur != nil && cur != stale {
		return cur, nil
	}

	replaced := func(cur *Token) bool { return cur != stale }

	tok, err := c.fetch(ctx, replaced)
	if err == nil && tok == stale {
		// Joined an exchange that handed out stale. That flight has left the
		// group already, so this starts a new one or joins another
		// refresher's; its double-check skips the exchange once stale is gone.
		tok, err = c.fetch(ctx, replaced)
	}
	return tok, err
}

// usable returns the cached token unless it is missing or inside the expiry leeway.
func (c *TokenCache) usable() *Token {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil || !c.fresh(c.token) {
		return nil
	}
	return c.token
}

func (c *TokenCache) fresh(tok *Token) bool {
	return c.expiryLeeway <= 0 || !tok.expiresWithin(c.expiryLeeway)
}

// fetch runs one shared exchange. When reuse is non-nil and accepts the token
// cached at the time the exchange starts, that token is returned instead.
func (c *TokenCache) fetch(ctx context.Context, reuse func(*Token) bool) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.group.DoChan(fetchKey, func() (any, error) {
		// Double-check: a previous exchange may have finished meanwhile.
		if reuse != nil {
			if cur := c.Current(); cur != nil && reuse(cur) {
				return cur, nil
			}
		}

		// Keep context values but decouple from the first caller's cancellation
		// so one cancelled waiter cannot fail the others.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		tok, err := c.provider.Acquire(fetchCtx)
		if err == nil && (tok == nil || tok.AccessToken() == "") {
			err = &AuthorizationError{Kind: KindExchangeFailed, Reason: "empty access token"}
		}

		c.mu.Lock()
		if err != nil {
			c.token = nil
		} else {
			c.token = tok
		}
		c.mu.Unlock()

		if err != nil {
			c.logf("oauth2client: token fetch failed: %v", err)
			return nil, err
		}

		if exp := tok.Expiry(); !exp.IsZero() {
			c.logf("oauth2client: obtained new access token (expires: %s)", exp.Format(time.RFC3339))
		} else {
			c.logf("oauth2client: obtained new access token")
		}
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Token), nil
	}
}

func (c *TokenCache) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
