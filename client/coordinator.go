package client

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// refreshKey is the one singleflight key: there is never more than one
// refresh in flight per process.
const refreshKey = "refresh"

// RefreshCoordinator serializes credential refreshes. Concurrent callers
// join the in-flight refresh and share its outcome; the store write-back
// happens inside the shared call, before any waiter observes the result.
type RefreshCoordinator struct {
	session *Session
	store   TokenStore
	group   singleflight.Group
}

func NewRefreshCoordinator(session *Session, store TokenStore) *RefreshCoordinator {
	return &RefreshCoordinator{
		session: session,
		store:   store,
	}
}

// Refresh runs perform at most once for all concurrent callers. During a
// logout it fails fast without touching the network.
//
// The flight itself runs detached from the initiating caller's context: its
// result is shared by every waiter, so cancelling the request that happened
// to start it must not abort the refresh for the others.
func (c *RefreshCoordinator) Refresh(ctx context.Context, perform func(context.Context) (string, error)) (string, error) {
	if c.session.LoggingOut() {
		return "", ErrLogoutInProgress
	}

	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(refreshKey, func() (interface{}, error) {
		token, err := perform(flightCtx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Save(token); err != nil {
			return nil, err
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
