// Package flows contains the engine's request flows (login, signup, refresh,
// logout, account maintenance) as free-standing runners over explicit
// dependency structs. The root engine wires the deps once at Build time and
// delegates; flows never import the root package.
package flows
