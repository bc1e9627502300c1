package oauth2client

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// SchemeBearer is the authorization scheme used for every Token.
const SchemeBearer = "Bearer"

// Token is an immutable access token. Refreshing replaces the cached *Token,
// it never mutates one.
type Token struct {
	accessToken string
	expiry      time.Time
}

// NewToken creates a Token. A zero expiry means the expiry is unknown.
func NewToken(accessToken string, expiry time.Time) *Token {
	return &Token{accessToken: accessToken, expiry: expiry}
}

// AccessToken returns the raw access token.
func (t *Token) AccessToken() string {
	return t.accessToken
}

// Scheme returns the authorization scheme.
func (t *Token) Scheme() string {
	return SchemeBearer
}

// Expiry returns the expiry reported by the token endpoint or derived from a
// JWT "exp" claim. It is zero when unknown.
func (t *Token) Expiry() time.Time {
	return t.expiry
}

// AuthorizationHeader returns the value for the Authorization header.
func (t *Token) AuthorizationHeader() string {
	return t.Scheme() + " " + t.accessToken
}

// expiresWithin reports whether a known expiry falls inside the leeway window.
func (t *Token) expiresWithin(leeway time.Duration) bool {
	if t.expiry.IsZero() {
		return false
	}
	return time.Until(t.expiry) <= leeway
}

// tokenFromOAuth2 converts an x/oauth2 token. When the endpoint omitted
// expires_in but issued a JWT, the unverified "exp" claim is used instead.
func tokenFromOAuth2(tok *oauth2.Token) *Token {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = jwtExpiry(tok.AccessToken)
	}
	return NewToken(tok.AccessToken, expiry)
}

// jwtExpiry reads the "exp" claim without verifying the signature. The
// resource server verifies the token; the client only uses exp as a hint.
func jwtExpiry(raw string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
