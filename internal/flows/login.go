package flows

import (
	"context"
	"strings"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureUserLookup
	LoginFailurePassword
	LoginFailureIssuePair
)

// LoginUserRecord is a flow-local user model used by login flows.
type LoginUserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
}

// LoginResult carries either the issued credential pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	UserID       string
	AccessToken  string
	RefreshToken string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	LookupUser     func(email string) (LoginUserRecord, error)
	VerifyPassword func(password, encodedHash string) (bool, error)
	IssuePair      func(ctx context.Context, userID, email string) (string, string, error)
}

// RunLogin verifies the password and mints a fresh credential pair, starting
// a new refresh lineage that invalidates any previously issued refresh
// credential for this user.
func RunLogin(ctx context.Context, email, pass string, deps LoginDeps) LoginResult {
	user, err := deps.LookupUser(strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return LoginResult{
			Failure: LoginFailureUserLookup,
			Err:     err,
		}
	}

	ok, err := deps.VerifyPassword(pass, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{
			Failure: LoginFailurePassword,
			Err:     err,
			UserID:  user.UserID,
		}
	}

	access, refresh, err := deps.IssuePair(ctx, user.UserID, user.Email)
	if err != nil {
		return LoginResult{
			Failure: LoginFailureIssuePair,
			Err:     err,
			UserID:  user.UserID,
		}
	}

	return LoginResult{
		Failure:      LoginFailureNone,
		UserID:       user.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
