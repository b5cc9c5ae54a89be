// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a small Manager that
// mints and verifies the short-lived access tokens used by the memoria auth
// engine. Only HS256 and Ed25519 are accepted; unknown algorithms are
// rejected before signature verification.
package jwt
