// Package config loads client settings for the oauth2http command.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// OAUTH2HTTP_ environment variables, then explicit overrides (command-line
// flags). Nested keys use "__" in variable names, so
// OAUTH2HTTP_OAUTH2__CLIENT_ID sets oauth2.client_id.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/AmmannChristian/go-oauth2http/oauth2client"
)

// EnvPrefix marks environment variables read by Load.
const EnvPrefix = "OAUTH2HTTP_"

// Config is the complete client configuration.
type Config struct {
	OAuth2 OAuth2 `koanf:"oauth2"`
	API    API    `koanf:"api"`
	TLS    TLS    `koanf:"tls"`
	Log    Log    `koanf:"log"`
}

// OAuth2 describes how access tokens are obtained.
type OAuth2 struct {
	GrantType      string            `koanf:"grant_type" validate:"required"`
	TokenEndpoint  string            `koanf:"token_endpoint"`
	TokenBaseURL   string            `koanf:"token_base_url"`
	TokenPath      string            `koanf:"token_path"`
	ClientID       string            `koanf:"client_id"`
	ClientSecret   string            `koanf:"client_secret"`
	Scope          string            `koanf:"scope"`
	EndpointParams map[string]string `koanf:"endpoint_params"`
	FetchTimeout   time.Duration     `koanf:"fetch_timeout" validate:"gte=0"`
	ExpiryLeeway   time.Duration     `koanf:"expiry_leeway" validate:"gte=0"`
}

// API describes the resource server.
type API struct {
	BaseAddress string            `koanf:"base_address" validate:"omitempty,url"`
	Query       map[string]string `koanf:"query"`
	Timeout     time.Duration     `koanf:"timeout" validate:"gte=0"`
	RequestID   bool              `koanf:"request_id"`
	Redirects   bool              `koanf:"redirects"`
}

// TLS holds optional CA and client certificate paths.
type TLS struct {
	CAFile             string `koanf:"ca_file" validate:"omitempty,file"`
	CertFile           string `koanf:"cert_file" validate:"required_with=KeyFile,omitempty,file"`
	KeyFile            string `koanf:"key_file" validate:"required_with=CertFile,omitempty,file"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
}

// Enabled reports whether any TLS setting deviates from the defaults.
func (t TLS) Enabled() bool {
	return t.CAFile != "" || t.CertFile != "" || t.KeyFile != ""
}

// Log selects the slog level and handler.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Defaults returns the values used when nothing else is configured.
func Defaults() map[string]any {
	return map[string]any{
		"oauth2.grant_type":    string(oauth2client.GrantClientCredentials),
		"oauth2.token_path":    oauth2client.DefaultTokenPath,
		"oauth2.fetch_timeout": oauth2client.DefaultFetchTimeout.String(),
		"api.timeout":          "30s",
		"api.redirects":        true,
		"log.level":            "info",
		"log.format":           "text",
	}
}

// Options controls the sources consulted by Load.
type Options struct {
	// Path of a TOML file. Empty skips the file layer.
	Path string
	// Environ returns the environment, typically os.Environ. Nil skips the env layer.
	Environ func() []string
	// Overrides are applied last, keyed by dotted path such as "log.level".
	Overrides map[string]any
	// Secrets resolves a missing client secret. Nil disables the lookup.
	Secrets SecretStore
}

// Load merges all configured layers into a validated Config.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", opts.Path, err)
		}
	}

	if opts.Environ != nil {
		provider := env.Provider(".", env.Opt{
			Prefix:        EnvPrefix,
			TransformFunc: envKey,
			EnvironFunc:   opts.Environ,
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("config: load environment: %w", err)
		}
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if cfg.OAuth2.ClientSecret == "" && cfg.OAuth2.ClientID != "" && opts.Secrets != nil {
		secret, err := opts.Secrets.Get(cfg.OAuth2.ClientID)
		if err != nil && !errors.Is(err, ErrSecretNotFound) {
			return nil, fmt.Errorf("config: look up client secret: %w", err)
		}
		cfg.OAuth2.ClientSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps OAUTH2HTTP_OAUTH2__CLIENT_ID to oauth2.client_id.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", "."), value
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the command settings and the derived OAuth2 configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	if _, err := c.OAuth2Config(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// OAuth2Config converts the oauth2 section into a validated oauth2client.Config.
func (c *Config) OAuth2Config() (oauth2client.Config, error) {
	grant, err := oauth2client.ParseGrantType(c.OAuth2.GrantType)
	if err != nil {
		return oauth2client.Config{}, err
	}

	var params url.Values
	if len(c.OAuth2.EndpointParams) > 0 {
		params = make(url.Values, len(c.OAuth2.EndpointParams))
		for k, v := range c.OAuth2.EndpointParams {
			params.Set(k, v)
		}
	}

	cfg := oauth2client.Config{
		GrantType:      grant,
		TokenEndpoint:  c.OAuth2.TokenEndpoint,
		TokenBaseURL:   c.OAuth2.TokenBaseURL,
		TokenPath:      c.OAuth2.TokenPath,
		ClientID:       c.OAuth2.ClientID,
		ClientSecret:   c.OAuth2.ClientSecret,
		Scope:          c.OAuth2.Scope,
		EndpointParams: params,
	}
	if err := cfg.Validate(); err != nil {
		return oauth2client.Config{}, err
	}
	return cfg, nil
}

// CacheOptions returns the token cache options implied by the oauth2 section.
func (c *Config) CacheOptions() []oauth2client.Option {
	var opts []oauth2client.Option
	if c.OAuth2.FetchTimeout > 0 {
		opts = append(opts, oauth2client.WithFetchTimeout(c.OAuth2.FetchTimeout))
	}
	if c.OAuth2.ExpiryLeeway > 0 {
		opts = append(opts, oauth2client.WithExpiryLeeway(c.OAuth2.ExpiryLeeway))
	}
	return opts
}

// QueryValues returns the default query parameters of the api section.
func (c *Config) QueryValues() url.Values {
	if len(c.API.Query) == 0 {
		return nil
	}
	q := make(url.Values, len(c.API.Query))
	for k, v := range c.API.Query {
		q.Set(k, v)
	}
	return q
}
