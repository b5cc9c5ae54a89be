package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	// RefreshSecretSize is the random-secret portion of a refresh credential.
	RefreshSecretSize = 32

	refreshRawSize = 16 + RefreshSecretSize
)

// NewRefreshSecret draws a fresh random secret for one rotation step.
func NewRefreshSecret() ([RefreshSecretSize]byte, error) {
	var secret [RefreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashRefreshSecret is the only form of a refresh secret the server persists.
func HashRefreshSecret(secret [RefreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshCredential packs userID+secret into the opaque wire form
// handed to the client. The user id rides along so the server can locate the
// lineage without a token-to-user index.
func EncodeRefreshCredential(userID string, secret [RefreshSecretSize]byte) (string, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return "", errors.New("invalid user id")
	}

	var raw [refreshRawSize]byte
	copy(raw[:16], uid[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeRefreshCredential is the inverse of EncodeRefreshCredential. It never
// touches storage; a decode failure is always a malformed credential, not a
// revoked one.
func DecodeRefreshCredential(credential string) (string, [RefreshSecretSize]byte, error) {
	var secret [RefreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(credential)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != refreshRawSize {
		return "", secret, errors.New("invalid refresh credential size")
	}

	var uid uuid.UUID
	copy(uid[:], raw[:16])
	copy(secret[:], raw[16:])

	return uid.String(), secret, nil
}
