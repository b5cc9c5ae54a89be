package client

import "sync/atomic"

// Session carries the two process-wide flags the refresh machinery consults.
// The flags are owned by this struct; nothing else in the package keeps
// session state.
type Session struct {
	loggingOut    atomic.Bool
	refreshFailed atomic.Bool
}

func NewSession() *Session {
	return &Session{}
}

// StartLogout must be set before the logout network call so that any 401
// racing with the logout is not treated as session expiry.
func (s *Session) StartLogout() {
	s.loggingOut.Store(true)
}

// EndLogout clears both flags after local cleanup finished. A fresh login
// after a failed refresh starts from a clean episode.
func (s *Session) EndLogout() {
	s.loggingOut.Store(false)
	s.refreshFailed.Store(false)
}

// LoggingOut reports whether a logout is mid-flight.
func (s *Session) LoggingOut() bool {
	return s.loggingOut.Load()
}

// MarkRefreshFailed flips the failure flag and reports whether this caller
// won the flip. Exactly one caller per episode observes true; that caller
// emits the terminal event.
func (s *Session) MarkRefreshFailed() bool {
	return s.refreshFailed.CompareAndSwap(false, true)
}

// RefreshFailed reports whether the current episode already failed.
func (s *Session) RefreshFailed() bool {
	return s.refreshFailed.Load()
}

// ResetRefreshFailed reopens the episode, called on successful login.
func (s *Session) ResetRefreshFailed() {
	s.refreshFailed.Store(false)
}
