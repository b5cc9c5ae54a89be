package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConcurrentRefreshesShareOnePerform(t *testing.T) {
	session := NewSession()
	store := NewMemoryStore()
	coordinator := NewRefreshCoordinator(session, store)

	var performs atomic.Int64
	release := make(chan struct{})
	perform := func(ctx context.Context) (string, error) {
		performs.Add(1)
		<-release
		return "fresh-token", nil
	}

	const callers = 16
	results := make([]string, callers)
	errs := make([]error, callers)
	var started, wg sync.WaitGroup
	started.Add(callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], errs[i] = coordinator.Refresh(context.Background(), perform)
		}(i)
	}
	started.Wait()
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, performs.Load(), "concurrent callers must share one refresh")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "fresh-token", results[i])
	}

	token, ok := store.Load()
	require.True(t, ok)
	require.Equal(t, "fresh-token", token)
}

func TestRefreshSavesBeforeWaitersObserve(t *testing.T) {
	session := NewSession()
	store := NewMemoryStore()
	coordinator := NewRefreshCoordinator(session, store)

	token, err := coordinator.Refresh(context.Background(), func(ctx context.Context) (string, error) {
		return "t1", nil
	})
	require.NoError(t, err)
	require.Equal(t, "t1", token)

	saved, ok := store.Load()
	require.True(t, ok, "the new credential must be persisted by the shared call")
	require.Equal(t, "t1", saved)
}

func TestRefreshFailurePropagatesToAllCallers(t *testing.T) {
	session := NewSession()
	store := NewMemoryStore()
	coordinator := NewRefreshCoordinator(session, store)

	boom := errors.New("refresh rejected")
	release := make(chan struct{})
	perform := func(ctx context.Context) (string, error) {
		<-release
		return "", boom
	}

	const callers = 8
	errs := make([]error, callers)
	var started, wg sync.WaitGroup
	started.Add(callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			started.Done()
			_, errs[i] = coordinator.Refresh(context.Background(), perform)
		}(i)
	}
	started.Wait()
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.ErrorIs(t, errs[i], boom)
	}
	_, ok := store.Load()
	require.False(t, ok, "a failed refresh must not write a credential")
}

func TestRefreshFailsFastDuringLogout(t *testing.T) {
	session := NewSession()
	store := NewMemoryStore()
	coordinator := NewRefreshCoordinator(session, store)

	session.StartLogout()
	_, err := coordinator.Refresh(context.Background(), func(ctx context.Context) (string, error) {
		t.Fatal("perform must not run during logout")
		return "", nil
	})
	require.ErrorIs(t, err, ErrLogoutInProgress)
}

func TestCancelledInitiatorDoesNotAbortSharedFlight(t *testing.T) {
	session := NewSession()
	store := NewMemoryStore()
	coordinator := NewRefreshCoordinator(session, store)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	perform := func(ctx context.Context) (string, error) {
		if calls.Add(1) > 1 {
			return "fresh-token", nil
		}
		close(started)
		// The flight context must outlive the initiator's cancellation.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
			return "fresh-token", nil
		}
	}

	initiatorCtx, cancel := context.WithCancel(context.Background())
	initiatorDone := make(chan struct{})
	go func() {
		defer close(initiatorDone)
		_, _ = coordinator.Refresh(initiatorCtx, perform)
	}()
	<-started

	waiterDone := make(chan struct{})
	var waiterToken string
	var waiterErr error
	go func() {
		defer close(waiterDone)
		waiterToken, waiterErr = coordinator.Refresh(context.Background(), perform)
	}()

	cancel()
	close(release)
	<-initiatorDone
	<-waiterDone

	require.NoError(t, waiterErr, "a waiter with a live context must not inherit the initiator's cancellation")
	require.Equal(t, "fresh-token", waiterToken)

	saved, ok := store.Load()
	require.True(t, ok)
	require.Equal(t, "fresh-token", saved)
	require.False(t, session.RefreshFailed())
}

func TestSequentialRefreshesEachPerform(t *testing.T) {
	session := NewSession()
	store := NewMemoryStore()
	coordinator := NewRefreshCoordinator(session, store)

	var n atomic.Int64
	for i := 0; i < 3; i++ {
		token, err := coordinator.Refresh(context.Background(), func(ctx context.Context) (string, error) {
			return fmt.Sprintf("t%d", n.Add(1)), nil
		})
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("t%d", i+1), token)
	}
	require.EqualValues(t, 3, n.Load(), "sequential refreshes are distinct flights")
}
