// Package client is the application-side companion of the auth engine. It
// keeps a short-lived access credential usable across a whole process by
// refreshing it exactly once per expiry, no matter how many concurrent
// requests observe the expiry.
//
// # Components
//
//   - [TokenStore] — durable access-credential storage ([FileStore],
//     [MemoryStore]).
//   - [Session] — process-wide logout / refresh-failed flags.
//   - [RefreshCoordinator] — single-flight refresh; concurrent callers share
//     one network call and one result.
//   - [Transport] — http.RoundTripper that attaches the credential, reacts
//     to 401 by refreshing, and retries the original request at most once.
//   - [EventBus] — the one terminal signal: the session cannot be refreshed.
//   - [Restorer] — startup identity restoration with caching and
//     cancellation.
//   - [Client] — wiring of the above plus login/logout/signup actions and
//     cross-instance synchronization over a tabsync.Bus. When the bus is a
//     tabsync file transport, point its OnCredentialRemoved callback at
//     [Client.NotifyCredentialRemoved] so an externally removed credential
//     ends the session through the same gate as a rejected refresh.
//
// # Architecture boundaries
//
// The refresh credential is never visible to this package. It lives in an
// httpOnly cookie held by the unauthenticated channel's cookie jar; the only
// thing stored locally is the access token.
//
// # What this package must NOT do
//
//   - Retry a request more than once.
//   - Emit more than one session-expired event per failure episode.
//   - Issue any network call during a logout already in progress.
package client
