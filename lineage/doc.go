// Package lineage stores the single active refresh lineage per user: one
// SHA-256 hash of the currently valid refresh secret, keyed by user id, with
// the refresh TTL as expiry.
//
// Rotation is an atomic Lua compare-and-swap: the presented hash must equal
// the stored hash or the rotation fails. A mismatch against an existing
// lineage means a superseded credential was replayed — the reuse signal the
// engine surfaces operationally.
//
// # Key layout
//
//	<prefix>:lineage:<userID> → 32-byte hash, PX = refresh TTL
//
// # Architecture boundaries
//
// This package owns Redis access for refresh lineages and nothing else. It
// has no knowledge of token encodings or JWT claims.
package lineage
