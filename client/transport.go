package client

import (
	"context"
	"errors"
	"io"
	"net/http"
)

type retriedKey struct{}

// Transport is the authenticated channel's http.RoundTripper. It attaches
// the stored access credential, and on a 401 refreshes once and replays the
// original request once.
//
// The unauthenticated channel (login, signup, refresh, logout) must not use
// this transport: a 401 there is a credential error, never session expiry.
type Transport struct {
	// Base is the underlying round tripper; http.DefaultTransport when nil.
	Base http.RoundTripper

	store       TokenStore
	session     *Session
	coordinator *RefreshCoordinator
	events      *EventBus
	refresh     func(ctx context.Context) (string, error)
}

// NewTransport wires the interceptor. refresh performs the actual refresh
// network call on the unauthenticated channel and returns the new access
// credential.
func NewTransport(
	base http.RoundTripper,
	store TokenStore,
	session *Session,
	coordinator *RefreshCoordinator,
	events *EventBus,
	refresh func(ctx context.Context) (string, error),
) *Transport {
	return &Transport{
		Base:        base,
		store:       store,
		session:     session,
		coordinator: coordinator,
		events:      events,
		refresh:     refresh,
	}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if token, ok := t.store.Load(); ok {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if t.session.LoggingOut() {
		// The 401 races a logout; the caller is about to be torn down
		// anyway.
		return resp, nil
	}
	if req.Context().Value(retriedKey{}) != nil {
		// Second 401 with a fresh credential. Never a third attempt.
		return resp, nil
	}

	token, refreshErr := t.coordinator.Refresh(req.Context(), t.refresh)
	if refreshErr != nil {
		if !errors.Is(refreshErr, ErrLogoutInProgress) {
			if t.session.MarkRefreshFailed() {
				t.events.emit()
			}
		}
		return resp, nil
	}

	retry, ok := t.replayable(req)
	if !ok {
		return resp, nil
	}

	drain(resp)
	retry.Header.Set("Authorization", "Bearer "+token)
	return t.base().RoundTrip(retry)
}

// replayable rebuilds the request for the retry. Requests whose body cannot
// be re-read are not retried.
func (t *Transport) replayable(req *http.Request) (*http.Request, bool) {
	retry := req.Clone(context.WithValue(req.Context(), retriedKey{}, struct{}{}))

	if req.Body == nil || req.Body == http.NoBody {
		return retry, true
	}
	if req.GetBody == nil {
		return nil, false
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	retry.Body = body
	return retry, true
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
