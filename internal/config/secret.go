package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the keyring service name client secrets are stored under.
const KeyringService = "oauth2http"

// ErrSecretNotFound is returned when no secret is stored for a client id.
var ErrSecretNotFound = errors.New("config: secret not found")

// SecretStore keeps client secrets keyed by client id.
type SecretStore interface {
	Get(clientID string) (string, error)
	Set(clientID, secret string) error
	Delete(clientID string) error
}

// Keyring stores secrets in the operating system keyring.
type Keyring struct {
	Service string
}

// NewKeyring returns a Keyring for KeyringService.
func NewKeyring() *Keyring {
	return &Keyring{Service: KeyringService}
}

// Get returns the secret for clientID or ErrSecretNotFound.
func (k *Keyring) Get(clientID string) (string, error) {
	secret, err := keyring.Get(k.Service, clientID)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("config: keyring get: %w", err)
	}
	return secret, nil
}

// Set stores secret for clientID, replacing any previous value.
func (k *Keyring) Set(clientID, secret string) error {
	if clientID == "" {
		return errors.New("config: client id is required")
	}
	if secret == "" {
		return errors.New("config: secret cannot be empty")
	}
	if err := keyring.Set(k.Service, clientID, secret); err != nil {
		return fmt.Errorf("config: keyring set: %w", err)
	}
	return nil
}

// Delete removes the secret for clientID. Deleting a missing secret returns
// ErrSecretNotFound.
func (k *Keyring) Delete(clientID string) error {
	err := keyring.Delete(k.Service, clientID)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrSecretNotFound
	}
	if err != nil {
		return fmt.Errorf("config: keyring delete: %w", err)
	}
	return nil
}
