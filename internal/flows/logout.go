package flows

import (
	"context"

	"github.com/memoria-app/auth/jwt"
)

// LogoutLineageStore is the revocation surface the logout flow requires.
type LogoutLineageStore interface {
	Revoke(ctx context.Context, userID string) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ParseAccess  func(string) (*jwt.AccessClaims, error)
	LineageStore LogoutLineageStore
}

// LogoutByAccessResult reports the resolved user and the revocation outcome.
type LogoutByAccessResult struct {
	UserID string
	Err    error
}

// RunLogout revokes the user's refresh lineage. Revocation is unconditional:
// the client clears its own state regardless of whether this call succeeds.
func RunLogout(ctx context.Context, userID string, deps LogoutDeps) error {
	return deps.LineageStore.Revoke(ctx, userID)
}

// RunLogoutByAccessToken resolves the user from an access token before
// revoking.
func RunLogoutByAccessToken(ctx context.Context, tokenStr string, deps LogoutDeps) LogoutByAccessResult {
	claims, err := deps.ParseAccess(tokenStr)
	if err != nil {
		return LogoutByAccessResult{Err: err}
	}

	return LogoutByAccessResult{
		UserID: claims.UID,
		Err:    deps.LineageStore.Revoke(ctx, claims.UID),
	}
}
