package oauth2client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// DefaultTokenPath is appended to TokenBaseURL when TokenPath is empty.
const DefaultTokenPath = "/oauth/token"

// Config describes how to obtain access tokens. It is treated as an immutable
// value: build it once, call Validate, then hand it to NewProvider.
type Config struct {
	// GrantType selects the token exchange strategy.
	GrantType GrantType `validate:"required,oneof=client_credentials authorization_code pkce device_code refresh_token"`

	// TokenEndpoint is the full token endpoint URL. When set it takes
	// precedence over TokenBaseURL and TokenPath.
	TokenEndpoint string `validate:"omitempty,url"`

	// TokenBaseURL and TokenPath are composed into the token endpoint URL
	// (e.g. "https://auth.example.com" + "/oauth/v2/token").
	TokenBaseURL string `validate:"omitempty,url"`
	TokenPath    string

	ClientID     string `validate:"required_if=GrantType client_credentials"`
	ClientSecret string `validate:"required_if=GrantType client_credentials"`

	// Scope is a space-separated list of scopes (e.g. "openid profile").
	Scope string

	// EndpointParams are sent as additional form values with every token request.
	EndpointParams url.Values
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that the grant type matches the populated fields and that
// a token endpoint can be derived.
func (c Config) Validate() error {
	if err := configValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.TokenEndpoint == "" && c.TokenBaseURL == "" {
		return fmt.Errorf("%w: TokenEndpoint or TokenBaseURL is required", ErrInvalidConfig)
	}

	return nil
}

// TokenURL returns the token endpoint address.
func (c Config) TokenURL() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	if c.TokenBaseURL == "" {
		return ""
	}

	path := c.TokenPath
	if path == "" {
		path = DefaultTokenPath
	}

	return strings.TrimRight(c.TokenBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Scopes splits Scope on whitespace.
func (c Config) Scopes() []string {
	return strings.Fields(c.Scope)
}
