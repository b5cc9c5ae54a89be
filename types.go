package auth

import (
	"context"
	"time"
)

// UserProvider is the interface that callers must implement to integrate the
// engine with their user database. It covers credential lookup, account
// creation, password updates, and profile maintenance.
//
//	Docs: docs/engine.md, docs/usage.md
type UserProvider interface {
	GetUserByEmail(email string) (UserRecord, error)
	GetUserByID(userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(userID string, newHash string) error
	UpdateProfile(ctx context.Context, userID string, input ProfileUpdate) (UserRecord, error)
	DeleteUser(ctx context.Context, userID string) error
}

// UserRecord is the full account record returned by [UserProvider].
// It carries the password hash and the profile fields projected into
// [Identity].
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	Name         string
	Nickname     string
	AvatarURL    string
}

// Identity is the user-facing profile projection derived from a validated
// access token. It is the only user shape the client subsystem ever sees.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

// AuthResult is returned by [Engine.ValidateAccess]. It contains the
// authenticated user's ID and email claim.
//
//	Docs: docs/jwt.md
type AuthResult struct {
	UserID string
	Email  string
}

// LoginResult is returned by [Engine.LoginWithResult]. It carries the freshly
// minted credential pair.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Name         string
	Nickname     string
}

// SignupRequest is the input for [Engine.Signup]. Email and Password are
// required; Nickname defaults to the local part of the email when empty.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
	Nickname string
}

// SignupResult is returned by [Engine.Signup]. It includes the new UserID
// and, when AutoLogin is enabled, access+refresh credentials.
type SignupResult struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
}

// ProfileUpdate is the input for [Engine.UpdateProfile]. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Name      *string
	Nickname  *string
	AvatarURL *string
}

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
//
//	Docs: docs/security.md
type SecurityReport struct {
	ProductionMode         bool
	SigningAlgorithm       string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	Argon2                 PasswordConfigReport
	RefreshRotationEnabled bool
	ReuseDetectionEnabled  bool
	SignupEnabled          bool
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}
