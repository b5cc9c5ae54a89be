package client

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	auth "github.com/memoria-app/auth"
)

func TestRestoreWithoutCredentialIsFree(t *testing.T) {
	store := NewMemoryStore()
	restorer := NewRestorer(store, func(ctx context.Context) (auth.Identity, error) {
		t.Fatal("no credential means no network call")
		return auth.Identity{}, nil
	})

	identity, ok, err := restorer.Restore(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, identity)
}

func TestRestoreFetchesOnceThenCaches(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("token"))

	var fetches atomic.Int64
	restorer := NewRestorer(store, func(ctx context.Context) (auth.Identity, error) {
		fetches.Add(1)
		return auth.Identity{ID: "u1", Email: "bob@example.com"}, nil
	})

	for i := 0; i < 2; i++ {
		identity, ok, err := restorer.Restore(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "bob@example.com", identity.Email)
	}
	require.EqualValues(t, 1, fetches.Load(), "the second restore must hit the cache")
}

func TestRestoreFailureClearsCredential(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("dead-token"))

	restorer := NewRestorer(store, func(ctx context.Context) (auth.Identity, error) {
		return auth.Identity{}, errors.New("unauthorized")
	})

	identity, ok, err := restorer.Restore(context.Background())
	require.NoError(t, err, "an unresolvable credential is unauthenticated, not an error")
	require.False(t, ok)
	require.Zero(t, identity)

	_, stillThere := store.Load()
	require.False(t, stillThere, "a credential that cannot resolve an identity must be dropped")
}

func TestRestoreCancellationLeavesStateUntouched(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("token"))

	release := make(chan struct{})
	restorer := NewRestorer(store, func(ctx context.Context) (auth.Identity, error) {
		<-release
		return auth.Identity{ID: "u1"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := restorer.Restore(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ok)

	// Let the in-flight fetch resolve; its result must be discarded.
	close(release)
	require.Never(t, func() bool {
		_, cached := restorer.Cached()
		return cached
	}, 100*time.Millisecond, 10*time.Millisecond, "a cancelled restore must not populate the cache")

	token, stillThere := store.Load()
	require.True(t, stillThere)
	require.Equal(t, "token", token, "a cancelled restore must not touch the store")
}

func TestSetAndClearIdentity(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("token"))

	var fetches atomic.Int64
	restorer := NewRestorer(store, func(ctx context.Context) (auth.Identity, error) {
		fetches.Add(1)
		return auth.Identity{ID: "u1"}, nil
	})

	restorer.SetIdentity(auth.Identity{ID: "u1", Nickname: "bob"})
	identity, ok, err := restorer.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bob", identity.Nickname)
	require.EqualValues(t, 0, fetches.Load(), "a seeded identity short-circuits the fetch")

	restorer.ClearIdentity()
	_, ok, err = restorer.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, fetches.Load(), "clearing the cache forces a refetch")
}
