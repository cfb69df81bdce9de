package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringUser = "api-key"

// KeyringStore keeps the API key in the system keychain
type KeyringStore struct {
	service string
}

// NewKeyringStore probes the keychain and fails when it is unusable
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(appName, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(appName, testKey)

	return &KeyringStore{service: appName}, nil
}

// Name implements KeyStore
func (k *KeyringStore) Name() string { return "keyring" }

// Get implements KeyStore
func (k *KeyringStore) Get() (string, error) {
	key, err := keyring.Get(k.service, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return key, nil
}

// Set implements KeyStore
func (k *KeyringStore) Set(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := keyring.Set(k.service, keyringUser, key); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Delete implements KeyStore
func (k *KeyringStore) Delete() error {
	if err := keyring.Delete(k.service, keyringUser); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
