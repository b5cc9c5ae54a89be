package flows

import (
	"context"
	"errors"

	"github.com/memoria-app/auth/internal"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureNextSecret
	RefreshFailureReuse
	RefreshFailureLineageNotFound
	RefreshFailureRotate
	RefreshFailureUserLookup
	RefreshFailureIssueAccess
	RefreshFailureEncode
)

// RefreshResult carries either the rotated credential pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	AccessToken  string
	RefreshToken string
}

// RefreshUserRecord is a flow-local user model used by the refresh flow.
type RefreshUserRecord struct {
	UserID string
	Email  string
}

// RefreshLineageStore is the rotation surface the refresh flow requires.
type RefreshLineageStore interface {
	Rotate(ctx context.Context, userID string, providedHash, nextHash [32]byte) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeCredential func(string) (string, [internal.RefreshSecretSize]byte, error)
	NewSecret        func() ([internal.RefreshSecretSize]byte, error)
	HashSecret       func([internal.RefreshSecretSize]byte) [32]byte
	EncodeCredential func(string, [internal.RefreshSecretSize]byte) (string, error)
	LookupUser       func(userID string) (RefreshUserRecord, error)
	IssueAccess      func(userID, email string) (string, error)
	LineageStore     RefreshLineageStore
	HashMismatch     error
	LineageMissing   error
}

// RunRefresh executes refresh rotation and issuance without root package
// dependencies. A hash mismatch is terminal for this attempt and is never
// retried here; retry policy belongs to the client interceptor.
func RunRefresh(ctx context.Context, credential string, deps RefreshDeps) RefreshResult {
	userID, providedSecret, err := deps.DecodeCredential(credential)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureDecode,
			Err:     err,
		}
	}

	nextSecret, err := deps.NewSecret()
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureNextSecret,
			Err:     err,
			UserID:  userID,
		}
	}

	err = deps.LineageStore.Rotate(
		ctx,
		userID,
		deps.HashSecret(providedSecret),
		deps.HashSecret(nextSecret),
	)
	if err != nil {
		switch {
		case deps.HashMismatch != nil && errors.Is(err, deps.HashMismatch):
			return RefreshResult{
				Failure: RefreshFailureReuse,
				Err:     err,
				UserID:  userID,
			}
		case deps.LineageMissing != nil && errors.Is(err, deps.LineageMissing):
			return RefreshResult{
				Failure: RefreshFailureLineageNotFound,
				Err:     err,
				UserID:  userID,
			}
		default:
			return RefreshResult{
				Failure: RefreshFailureRotate,
				Err:     err,
				UserID:  userID,
			}
		}
	}

	user, err := deps.LookupUser(userID)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureUserLookup,
			Err:     err,
			UserID:  userID,
		}
	}

	access, err := deps.IssueAccess(user.UserID, user.Email)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureIssueAccess,
			Err:     err,
			UserID:  userID,
		}
	}

	refresh, err := deps.EncodeCredential(userID, nextSecret)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureEncode,
			Err:     err,
			UserID:  userID,
		}
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
