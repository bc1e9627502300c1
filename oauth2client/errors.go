package oauth2client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedGrant is matched by authorization errors for grant types
	// without an implementation.
	ErrUnsupportedGrant = errors.New("oauth2client: unsupported grant type")

	// ErrExchangeFailed is matched by authorization errors raised when the token
	// endpoint rejected the credentials or could not be reached.
	ErrExchangeFailed = errors.New("oauth2client: token exchange failed")

	// ErrInvalidConfig indicates a Config that failed validation.
	ErrInvalidConfig = errors.New("oauth2client: invalid configuration")
)

// ErrorKind classifies an AuthorizationError.
type ErrorKind int

const (
	// KindExchangeFailed means the credential exchange itself failed.
	KindExchangeFailed ErrorKind = iota
	// KindUnsupported means the configured grant type has no implementation.
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindExchangeFailed:
		return "exchange failed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// AuthorizationError is returned whenever an access token could not be obtained.
//
// Use errors.Is with ErrUnsupportedGrant or ErrExchangeFailed to tell a
// configuration problem apart from a rejected or unreachable token endpoint.
// The underlying cause (for example *oauth2.RetrieveError) is available via
// errors.As.
type AuthorizationError struct {
	Kind   ErrorKind
	Grant  GrantType
	Reason string
	Err    error
}

func (e *AuthorizationError) Error() string {
	msg := fmt.Sprintf("oauth2client: %s grant: %s", e.Grant, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *AuthorizationError) Is(target error) bool {
	switch target {
	case ErrUnsupportedGrant:
		return e.Kind == KindUnsupported
	case ErrExchangeFailed:
		return e.Kind == KindExchangeFailed
	}
	return false
}

// IsUnsupported reports whether err is an AuthorizationError for a grant type
// without an implementation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedGrant)
}
