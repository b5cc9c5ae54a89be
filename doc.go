// Package auth provides the authentication engine behind the memoria
// application: JWT access tokens, rotating opaque refresh credentials, and a
// Redis-backed single-active-lineage store that detects reuse of superseded
// refresh credentials.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// auth is the public server-side surface. It exposes [Engine], [Builder],
// [Config], and value types (Identity, MetricsSnapshot, AuditEvent). Flow
// orchestration lives under internal/ and is never exported. The matching
// client-side session subsystem (token store, single-flight refresh,
// cross-instance sync) lives in the client subpackage and talks to Engine
// only over HTTP.
//
// # What this package must NOT do
//
//   - Expose Redis clients, the lineage store, or credential encoding details
//     in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports auth (no import cycles).
//
// # Performance contract
//
// ValidateAccess is the hot path. It must not allocate beyond the returned
// claims and never touches Redis. Login, Refresh, Logout, and account
// operations are allowed one Redis round-trip per call.
package auth
