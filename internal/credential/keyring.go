// Package credential stores the gateway token outside the config file.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const (
	serviceName = "efficio"

	// GatewayTokenKey is the keyring key holding the proxy bearer token.
	GatewayTokenKey = "gateway-token"

	// TokenEnv overrides the stored token when set.
	TokenEnv = "EFFICIO_GATEWAY_TOKEN"
)

// Vault reads and writes credentials in a keyring.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a Vault backed by the system keyring, falling back to an
// encrypted file under configDir.
func Open(configDir string) (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("efficio-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewVault(ring), nil
}

// NewVault wraps an existing keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// GatewayToken returns the proxy token. The environment wins over the
// keyring; a missing token is an empty string, not an error.
func (v *Vault) GatewayToken() (string, error) {
	if tok := os.Getenv(TokenEnv); tok != "" {
		return tok, nil
	}

	item, err := v.ring.Get(GatewayTokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", GatewayTokenKey, err)
	}
	return string(item.Data), nil
}

// SetGatewayToken stores the proxy token.
func (v *Vault) SetGatewayToken(token string) error {
	err := v.ring.Set(keyring.Item{
		Key:   GatewayTokenKey,
		Data:  []byte(token),
		Label: "efficio gateway token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", GatewayTokenKey, err)
	}
	return nil
}

// DeleteGatewayToken removes the stored token. Removing a token that was
// never set succeeds.
func (v *Vault) DeleteGatewayToken() error {
	err := v.ring.Remove(GatewayTokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", GatewayTokenKey, err)
	}
	return nil
}
