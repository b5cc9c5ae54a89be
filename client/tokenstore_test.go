package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Load()
	require.False(t, ok, "a fresh store holds no credential")

	require.NoError(t, store.Save("token-1"))
	token, ok := store.Load()
	require.True(t, ok)
	require.Equal(t, "token-1", token)

	require.NoError(t, store.Clear())
	_, ok = store.Load()
	require.False(t, ok)
	require.NoError(t, store.Clear(), "clearing an empty store is not an error")
}

func TestFileStoreUsesFixedFileName(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("token"))
	require.Equal(t, filepath.Join(dir, AccessTokenFile), store.Path())

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.Equal(t, "token", string(raw))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	_, err := NewFileStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLogoutMarkerLifecycle(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.False(t, store.HasLogoutMarker())
	require.NoError(t, store.SetLogoutMarker())
	require.True(t, store.HasLogoutMarker())
	require.NoError(t, store.ClearLogoutMarker())
	require.False(t, store.HasLogoutMarker())
	require.NoError(t, store.ClearLogoutMarker(), "clearing an absent marker is not an error")
}

func TestFileStoreIgnoresWhitespaceToken(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(), []byte("  \n"), 0o600))
	_, ok := store.Load()
	require.False(t, ok, "a blank credential file counts as no credential")
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Load()
	require.False(t, ok)

	require.NoError(t, store.Save("token"))
	token, ok := store.Load()
	require.True(t, ok)
	require.Equal(t, "token", token)

	require.NoError(t, store.Save(""))
	_, ok = store.Load()
	require.False(t, ok, "saving an empty token clears the store")

	require.NoError(t, store.Save("again"))
	require.NoError(t, store.Clear())
	_, ok = store.Load()
	require.False(t, ok)
}
