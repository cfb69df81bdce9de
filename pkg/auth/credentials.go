package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "dvidsharvest"

// KeyStore holds a single API key
type KeyStore interface {
	// Name identifies the store in status output
	Name() string
	// Get returns the stored key or ErrKeyNotFound
	Get() (string, error)
	// Set replaces the stored key
	Set(key string) error
	// Delete removes the stored key
	Delete() error
}

// Manager reads and writes the API key through an ordered list of stores
type Manager struct {
	stores []KeyStore
}

// NewManager creates a manager that prefers the system keychain, falls back
// to an encrypted file and finally reads DVIDS_API_KEY
func NewManager() (*Manager, error) {
	var stores []KeyStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "api-key.enc"), configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return NewManagerWithStores(stores...), nil
}

// NewManagerWithStores creates a manager over the given stores, in order
func NewManagerWithStores(stores ...KeyStore) *Manager {
	return &Manager{stores: stores}
}

// Set saves key in the first store that accepts it and reports which one
func (m *Manager) Set(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	var lastErr error
	for _, store := range m.stores {
		err := store.Set(key)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store api key: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Get returns the key from the first store that has one, and its name
func (m *Manager) Get() (string, string, error) {
	for _, store := range m.stores {
		if key, err := store.Get(); err == nil && key != "" {
			return key, store.Name(), nil
		}
	}
	return "", "", ErrKeyNotFound
}

// Delete removes the key from every writable store
func (m *Manager) Delete() error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete()
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to delete api key: %w", lastErr)
	}
	if !deleted {
		return ErrKeyNotFound
	}
	return nil
}

// Mask hides all but the first and last four characters of key
func Mask(key string) string {
	if len(key) <= 8 {
		return "********"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// getConfigDir returns the per-user configuration directory
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", appName)
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), appName)
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, appName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", appName)
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Errors
var (
	ErrKeyNotFound      = errors.New("api key not found")
	ErrInvalidKey       = errors.New("invalid api key")
	ErrStoreUnavailable = errors.New("key store unavailable")
)
