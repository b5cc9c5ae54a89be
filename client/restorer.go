package client

import (
	"context"
	"sync"

	auth "github.com/memoria-app/auth"
)

// Restorer resolves "who is logged in" at process start. It is the only
// cancellable piece of the client: a cancelled restore must leave client
// state untouched.
type Restorer struct {
	store TokenStore
	fetch func(ctx context.Context) (auth.Identity, error)

	mu     sync.Mutex
	cached *auth.Identity
}

func NewRestorer(store TokenStore, fetch func(ctx context.Context) (auth.Identity, error)) *Restorer {
	return &Restorer{
		store: store,
		fetch: fetch,
	}
}

// Restore returns the current identity and whether the user is
// authenticated. With no stored credential it resolves immediately with zero
// network calls. A cached identity short-circuits the fetch, so repeated
// restores cost nothing. Any fetch failure clears the credential: a
// credential that cannot resolve an identity is dead weight.
func (r *Restorer) Restore(ctx context.Context) (auth.Identity, bool, error) {
	if _, ok := r.store.Load(); !ok {
		return auth.Identity{}, false, nil
	}

	r.mu.Lock()
	if r.cached != nil {
		identity := *r.cached
		r.mu.Unlock()
		return identity, true, nil
	}
	r.mu.Unlock()

	type outcome struct {
		identity auth.Identity
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		identity, err := r.fetch(ctx)
		done <- outcome{identity: identity, err: err}
	}()

	select {
	case <-ctx.Done():
		// The fetch may still resolve; its result is discarded without
		// touching the store or the cache.
		return auth.Identity{}, false, ctx.Err()
	case out := <-done:
		if out.err != nil {
			_ = r.store.Clear()
			return auth.Identity{}, false, nil
		}
		r.mu.Lock()
		identity := out.identity
		r.cached = &identity
		r.mu.Unlock()
		return identity, true, nil
	}
}

// Cached returns the cached identity, when any.
func (r *Restorer) Cached() (auth.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		return auth.Identity{}, false
	}
	return *r.cached, true
}

// SetIdentity replaces the cache, used by login and by profile-updated
// broadcasts.
func (r *Restorer) SetIdentity(identity auth.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := identity
	r.cached = &cp
}

// ClearIdentity drops the cache so the next restore refetches.
func (r *Restorer) ClearIdentity() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
}
