// Package middleware exposes an HTTP middleware adapter for bearer-token
// authorization built on top of auth.Engine validation.
//
// # Guards
//
//   - [Guard] — stateless access-token verification, no Redis call.
//
// The guard reads the Authorization header, calls Engine.ValidateAccess, and
// injects the validated result into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.ValidateAccess.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (refresh rotation is the only stateful path and it lives
//     behind the engine).
//   - Make authorization decisions beyond pass/reject from ValidateAccess.
package middleware
