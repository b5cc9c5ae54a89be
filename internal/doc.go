// Package internal holds non-exported helpers shared by the auth engine:
// refresh-credential generation and wire encoding. Nothing here is part of
// the public API.
package internal
