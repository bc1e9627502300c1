package oauth2client

import (
	"fmt"
	"strings"
)

// GrantType selects the OAuth2 protocol used to obtain access tokens.
type GrantType string

// Grant types known to the provider dispatch. Only GrantClientCredentials has
// a concrete implementation; the others resolve to an unsupported provider.
const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantPKCE              GrantType = "pkce"
	GrantDeviceCode        GrantType = "device_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

var grantAliases = map[string]GrantType{
	"client_credentials": GrantClientCredentials,
	"clientcredentials":  GrantClientCredentials,
	"authorization_code": GrantAuthorizationCode,
	"authorizationcode":  GrantAuthorizationCode,
	"pkce":               GrantPKCE,
	"device_code":        GrantDeviceCode,
	"devicecode":         GrantDeviceCode,
	"refresh_token":      GrantRefreshToken,
	"refreshtoken":       GrantRefreshToken,
}

// ParseGrantType converts user input such as "ClientCredentials",
// "client-credentials" or "client_credentials" into a GrantType.
func ParseGrantType(s string) (GrantType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if g, ok := grantAliases[key]; ok {
		return g, nil
	}
	return "", fmt.Errorf("oauth2client: unknown grant type %q", s)
}

// String implements fmt.Stringer.
func (g GrantType) String() string {
	return string(g)
}

// Supported reports whether a concrete token exchange exists for g.
func (g GrantType) Supported() bool {
	return g == GrantClientCredentials
}
