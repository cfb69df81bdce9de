package auth

import "os"

// EnvAPIKey is read by EnvironmentStore
const EnvAPIKey = "DVIDS_API_KEY"

// EnvironmentStore reads the API key from the environment. It cannot be
// written.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Name implements KeyStore
func (e *EnvironmentStore) Name() string { return "environment" }

// Get implements KeyStore
func (e *EnvironmentStore) Get() (string, error) {
	if key := os.Getenv(EnvAPIKey); key != "" {
		return key, nil
	}
	return "", ErrKeyNotFound
}

// Set is not supported
func (e *EnvironmentStore) Set(string) error { return ErrStoreUnavailable }

// Delete is not supported
func (e *EnvironmentStore) Delete() error { return ErrStoreUnavailable }
