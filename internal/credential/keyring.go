package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/tasksync/internal/model"
)

// ErrNoToken is returned when no access token is stored for a provider.
var ErrNoToken = errors.New("no access token stored")

// Store hands out provider access tokens. Acquiring and refreshing tokens
// happens elsewhere; this only reads what was stored.
type Store interface {
	Token(provider model.Provider, tenantID string) (string, error)
}

// KeyringStore keeps provider tokens in the system keyring under
// "<provider>:<tenant>" with "<provider>" as the fallback key.
type KeyringStore struct {
	ring keyring.Keyring
}

// Open returns a KeyringStore over the configured keyring backends.
func Open(cfg model.CredentialsConfig) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.Service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Token returns the tenant specific token, falling back to the provider
// wide one.
func (s *KeyringStore) Token(provider model.Provider, tenantID string) (string, error) {
	keys := []string{string(provider)}
	if tenantID != "" {
		keys = []string{tokenKey(provider, tenantID), string(provider)}
	}

	for _, key := range keys {
		item, err := s.ring.Get(key)
		if errors.Is(err, keyring.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("getting credential %q: %w", key, err)
		}
		return string(item.Data), nil
	}
	return "", fmt.Errorf("%s token for tenant %q: %w", provider, tenantID, ErrNoToken)
}

// SetToken stores a token. An empty tenantID stores the provider wide
// fallback.
func (s *KeyringStore) SetToken(provider model.Provider, tenantID, token string) error {
	key := string(provider)
	if tenantID != "" {
		key = tokenKey(provider, tenantID)
	}
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(token),
		Label: "tasksync " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// DeleteToken removes a stored token.
func (s *KeyringStore) DeleteToken(provider model.Provider, tenantID string) error {
	key := string(provider)
	if tenantID != "" {
		key = tokenKey(provider, tenantID)
	}
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

func tokenKey(provider model.Provider, tenantID string) string {
	return string(provider) + ":" + tenantID
}
