package flows

import (
	"context"
	"errors"
	"strings"
)

// SignupFailureKind classifies signup flow failures for root-level mapping.
type SignupFailureKind int

const (
	SignupFailureNone SignupFailureKind = iota
	SignupFailureDisabled
	SignupFailureInvalid
	SignupFailurePasswordPolicy
	SignupFailureDuplicate
	SignupFailureCreate
	SignupFailureIssuePair
)

// SignupRequest is the flow-local signup input.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
	Nickname string
}

// SignupUserRecord is a flow-local model of the freshly created account.
type SignupUserRecord struct {
	UserID string
	Email  string
}

// SignupResult carries the new account and, with auto-login, a credential pair.
type SignupResult struct {
	Failure      SignupFailureKind
	Err          error
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
}

// SignupDeps captures signup flow dependencies.
type SignupDeps struct {
	Enabled      func() bool
	AutoLogin    func() bool
	HashPassword func(string) (string, error)
	CreateUser   func(ctx context.Context, email, passwordHash, name, nickname string) (SignupUserRecord, error)
	IssuePair    func(ctx context.Context, userID, email string) (string, string, error)
	DuplicateErr error
}

// RunSignup creates the account and optionally auto-logs it in.
func RunSignup(ctx context.Context, req SignupRequest, deps SignupDeps) SignupResult {
	if deps.Enabled != nil && !deps.Enabled() {
		return SignupResult{Failure: SignupFailureDisabled}
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return SignupResult{Failure: SignupFailureInvalid}
	}

	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		nickname = email[:strings.Index(email, "@")]
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return SignupResult{
			Failure: SignupFailurePasswordPolicy,
			Err:     err,
		}
	}

	user, err := deps.CreateUser(ctx, email, hash, strings.TrimSpace(req.Name), nickname)
	if err != nil {
		if deps.DuplicateErr != nil && errors.Is(err, deps.DuplicateErr) {
			return SignupResult{
				Failure: SignupFailureDuplicate,
				Err:     err,
			}
		}
		return SignupResult{
			Failure: SignupFailureCreate,
			Err:     err,
		}
	}

	result := SignupResult{
		Failure: SignupFailureNone,
		UserID:  user.UserID,
		Email:   user.Email,
	}

	if deps.AutoLogin == nil || !deps.AutoLogin() {
		return result
	}

	access, refresh, err := deps.IssuePair(ctx, user.UserID, user.Email)
	if err != nil {
		return SignupResult{
			Failure: SignupFailureIssuePair,
			Err:     err,
			UserID:  user.UserID,
			Email:   user.Email,
		}
	}

	result.AccessToken = access
	result.RefreshToken = refresh
	return result
}
