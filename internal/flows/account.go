package flows

import (
	"context"
)

// AccountFailureKind classifies account flow failures for root-level mapping.
type AccountFailureKind int

const (
	AccountFailureNone AccountFailureKind = iota
	AccountFailureUserLookup
	AccountFailureInvalidOld
	AccountFailurePasswordReuse
	AccountFailurePasswordPolicy
	AccountFailureUpdate
	AccountFailureRevoke
)

// AccountUserRecord is a flow-local user model used by account flows.
type AccountUserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
}

// AccountResult reports the outcome of an account mutation.
type AccountResult struct {
	Failure AccountFailureKind
	Err     error
	UserID  string
}

// AccountLineageStore is the revocation surface account flows require.
type AccountLineageStore interface {
	Revoke(ctx context.Context, userID string) error
}

// AccountDeps captures account flow dependencies.
type AccountDeps struct {
	LookupUser         func(userID string) (AccountUserRecord, error)
	VerifyPassword     func(password, encodedHash string) (bool, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(userID, newHash string) error
	DeleteUser         func(ctx context.Context, userID string) error
	LineageStore       AccountLineageStore
	Warn               func(string, ...any)
}

// RunChangePassword verifies the old password, stores the new hash, and
// revokes the refresh lineage so every other session must log in again.
func RunChangePassword(ctx context.Context, userID, oldPassword, newPassword string, deps AccountDeps) AccountResult {
	user, err := deps.LookupUser(userID)
	if err != nil {
		return AccountResult{
			Failure: AccountFailureUserLookup,
			Err:     err,
		}
	}

	ok, err := deps.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return AccountResult{
			Failure: AccountFailureInvalidOld,
			Err:     err,
			UserID:  user.UserID,
		}
	}

	if newPassword == oldPassword {
		return AccountResult{
			Failure: AccountFailurePasswordReuse,
			UserID:  user.UserID,
		}
	}

	newHash, err := deps.HashPassword(newPassword)
	if err != nil {
		return AccountResult{
			Failure: AccountFailurePasswordPolicy,
			Err:     err,
			UserID:  user.UserID,
		}
	}

	if err := deps.UpdatePasswordHash(user.UserID, newHash); err != nil {
		return AccountResult{
			Failure: AccountFailureUpdate,
			Err:     err,
			UserID:  user.UserID,
		}
	}

	if err := deps.LineageStore.Revoke(ctx, user.UserID); err != nil {
		if deps.Warn != nil {
			deps.Warn("auth: lineage revocation failed after password change")
		}
		return AccountResult{
			Failure: AccountFailureRevoke,
			Err:     err,
			UserID:  user.UserID,
		}
	}

	return AccountResult{
		Failure: AccountFailureNone,
		UserID:  user.UserID,
	}
}

// RunDeleteAccount removes the account and revokes its lineage. Revocation
// runs first so a half-failed delete cannot leave a refreshable ghost user.
func RunDeleteAccount(ctx context.Context, userID string, deps AccountDeps) AccountResult {
	if err := deps.LineageStore.Revoke(ctx, userID); err != nil {
		return AccountResult{
			Failure: AccountFailureRevoke,
			Err:     err,
			UserID:  userID,
		}
	}

	if err := deps.DeleteUser(ctx, userID); err != nil {
		return AccountResult{
			Failure: AccountFailureUpdate,
			Err:     err,
			UserID:  userID,
		}
	}

	return AccountResult{
		Failure: AccountFailureNone,
		UserID:  userID,
	}
}
