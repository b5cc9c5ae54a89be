// Package httpapi mounts the engine behind a JSON HTTP surface.
//
// # Endpoints
//
//	POST   /auth/login     — password login, sets the refresh cookie
//	POST   /auth/signup    — account creation
//	POST   /auth/refresh   — rotates the refresh cookie, returns a new access token
//	POST   /auth/logout    — revokes the refresh lineage, clears the cookie
//	GET    /auth/me        — identity of the bearer
//	PATCH  /users/me           — profile update
//	PATCH  /users/me/password  — password change (revokes the lineage)
//	DELETE /users/me           — account deletion
//	GET    /metrics        — Prometheus text exposition
//
// The refresh credential never appears in a response body. It travels only in
// an httpOnly, SameSite=Strict cookie, so browser-like clients cannot read it
// and scripts cannot exfiltrate it.
//
// # Architecture boundaries
//
// Handlers translate HTTP to engine calls and back. All authentication
// decisions live in the engine; this package only owns status-code mapping
// and cookie mechanics.
package httpapi
