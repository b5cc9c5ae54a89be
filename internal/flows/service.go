package flows

import (
	"context"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Refresh.DecodeCredential != nil
}

func (s Service) Login(ctx context.Context, email, password string) LoginResult {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Signup(ctx context.Context, req SignupRequest) SignupResult {
	return RunSignup(ctx, req, s.deps.Signup)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, userID string) error {
	return RunLogout(ctx, userID, s.deps.Logout)
}

func (s Service) LogoutByAccessToken(ctx context.Context, tokenStr string) LogoutByAccessResult {
	return RunLogoutByAccessToken(ctx, tokenStr, s.deps.Logout)
}

func (s Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) AccountResult {
	return RunChangePassword(ctx, userID, oldPassword, newPassword, s.deps.Account)
}

func (s Service) DeleteAccount(ctx context.Context, userID string) AccountResult {
	return RunDeleteAccount(ctx, userID, s.deps.Account)
}
