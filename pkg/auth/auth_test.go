package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	_, err = store.Get()
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set("secret-key-123"))
	key, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "secret-key-123", key)

	require.NoError(t, store.Delete())
	assert.ErrorIs(t, store.Delete(), ErrKeyNotFound)
	assert.ErrorIs(t, store.Set(""), ErrInvalidKey)
}

func TestEncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPassphrase, "")
	path := filepath.Join(dir, "api-key.enc")

	store, err := NewEncryptedFileStore(path, dir)
	require.NoError(t, err)

	_, err = store.Get()
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set("file-key"))
	assert.FileExists(t, filepath.Join(dir, ".passphrase"))

	// a second store picks up the saved passphrase
	reopened, err := NewEncryptedFileStore(path, dir)
	require.NoError(t, err)
	key, err := reopened.Get()
	require.NoError(t, err)
	assert.Equal(t, "file-key", key)

	require.NoError(t, reopened.Delete())
	assert.NoFileExists(t, path)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api-key.enc")

	t.Setenv(EnvPassphrase, "one")
	store, err := NewEncryptedFileStore(path, dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("file-key"))

	t.Setenv(EnvPassphrase, "two")
	other, err := NewEncryptedFileStore(path, dir)
	require.NoError(t, err)
	_, err = other.Get()
	assert.ErrorContains(t, err, "decrypt")
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(EnvAPIKey, "")
	_, err := store.Get()
	assert.ErrorIs(t, err, ErrKeyNotFound)

	t.Setenv(EnvAPIKey, "env-key")
	key, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)

	assert.ErrorIs(t, store.Set("x"), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(), ErrStoreUnavailable)
}

func TestManagerFallsThroughStores(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	t.Setenv(EnvPassphrase, "pass")
	t.Setenv(EnvAPIKey, "env-key")

	kr, err := NewKeyringStore()
	require.NoError(t, err)
	file, err := NewEncryptedFileStore(filepath.Join(dir, "k.enc"), dir)
	require.NoError(t, err)
	m := NewManagerWithStores(kr, file, NewEnvironmentStore())

	key, source, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)
	assert.Equal(t, "environment", source)

	source, err = m.Set("stored-key")
	require.NoError(t, err)
	assert.Equal(t, "keyring", source)

	key, source, err = m.Get()
	require.NoError(t, err)
	assert.Equal(t, "stored-key", key)
	assert.Equal(t, "keyring", source)

	require.NoError(t, m.Delete())
	key, _, err = m.Get()
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)

	assert.ErrorIs(t, m.Delete(), ErrKeyNotFound)
	_, err = m.Set("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "abcd...wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}
