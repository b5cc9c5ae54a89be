package auth

import (
	"context"
	"errors"
	"log"

	"github.com/memoria-app/auth/internal/flows"
	"github.com/memoria-app/auth/jwt"
	"github.com/memoria-app/auth/lineage"
	"github.com/memoria-app/auth/password"
)

// Engine defines a public type used by auth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	lineageStore *lineage.Store
	flows        flows.Service
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
	userProvider UserProvider
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, email, password string) (string, string, error) {
	result, err := e.LoginWithResult(ctx, email, password)
	if err != nil {
		return "", "", err
	}
	if result == nil {
		return "", "", ErrEngineNotReady
	}
	return result.AccessToken, result.RefreshToken, nil
}

// LoginWithResult describes the loginwithresult operation and its observable behavior.
//
// LoginWithResult may return an error when input validation, dependency calls, or security checks fail.
// LoginWithResult does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LoginWithResult(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	result := e.flows.Login(ctx, email, password)
	switch result.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureUserLookup, flows.LoginFailurePassword:
		// Same sentinel for unknown user and wrong password so callers
		// cannot probe which emails have accounts.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, result.UserID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	case flows.LoginFailureIssuePair:
		e.metricInc(MetricLoginFailure)
		mapped := mapLineageErr(result.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, result.UserID, mapped, func() map[string]string {
			return map[string]string{"reason": "issue_pair"}
		})
		return nil, mapped
	default:
		e.metricInc(MetricLoginFailure)
		return nil, ErrUnauthorized
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, result.UserID, nil, nil)

	return &LoginResult{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, nil
}

// Signup describes the signup operation and its observable behavior.
//
// Signup may return an error when input validation, dependency calls, or security checks fail.
// Signup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	result := e.flows.Signup(ctx, flows.SignupRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Nickname: req.Nickname,
	})
	switch result.Failure {
	case flows.SignupFailureNone:
	case flows.SignupFailureDisabled:
		e.metricInc(MetricSignupRejected)
		e.emitAudit(ctx, auditEventSignupFailure, false, "", ErrSignupDisabled, nil)
		return nil, ErrSignupDisabled
	case flows.SignupFailureInvalid:
		e.metricInc(MetricSignupRejected)
		e.emitAudit(ctx, auditEventSignupFailure, false, "", ErrSignupInvalid, nil)
		return nil, ErrSignupInvalid
	case flows.SignupFailurePasswordPolicy:
		e.metricInc(MetricSignupRejected)
		e.emitAudit(ctx, auditEventSignupFailure, false, "", ErrPasswordPolicy, nil)
		return nil, ErrPasswordPolicy
	case flows.SignupFailureDuplicate:
		e.metricInc(MetricSignupDuplicate)
		e.emitAudit(ctx, auditEventSignupDuplicate, false, "", ErrAccountExists, nil)
		return nil, ErrAccountExists
	case flows.SignupFailureCreate, flows.SignupFailureIssuePair:
		e.metricInc(MetricSignupRejected)
		mapped := mapLineageErr(result.Err)
		e.emitAudit(ctx, auditEventSignupFailure, false, result.UserID, mapped, nil)
		return nil, mapped
	default:
		e.metricInc(MetricSignupRejected)
		return nil, ErrUnauthorized
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, true, result.UserID, nil, nil)

	return &SignupResult{
		UserID:       result.UserID,
		Email:        result.Email,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil || !e.flows.Initialized() {
		return "", "", ErrEngineNotReady
	}

	result := e.flows.Refresh(ctx, refreshToken)
	switch result.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureDecode:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "decode_failed"}
		})
		return "", "", ErrRefreshInvalid
	case flows.RefreshFailureReuse:
		// A stale credential presented a hash that is no longer current.
		// Treat it as theft evidence and kill the whole lineage.
		e.metricInc(MetricRefreshReuseDetected)
		if revokeErr := e.lineageStore.Revoke(ctx, result.UserID); revokeErr != nil {
			log.Print("auth: lineage revocation failed after reuse detection")
		}
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, result.UserID, ErrRefreshReuse, nil)
		return "", "", ErrRefreshReuse
	case flows.RefreshFailureLineageNotFound:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.UserID, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "lineage_not_found"}
		})
		return "", "", ErrRefreshInvalid
	case flows.RefreshFailureUserLookup:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.UserID, ErrUserNotFound, func() map[string]string {
			return map[string]string{"reason": "user_lookup"}
		})
		return "", "", ErrUserNotFound
	default:
		e.metricInc(MetricRefreshFailure)
		mapped := mapLineageErr(result.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.UserID, mapped, func() map[string]string {
			return map[string]string{"reason": "rotate_or_issue_failed"}
		})
		return "", "", mapped
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, result.UserID, nil, nil)

	return result.AccessToken, result.RefreshToken, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	if err := e.flows.Logout(ctx, userID); err != nil {
		return mapLineageErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, nil, nil)
	return nil
}

// LogoutByAccessToken describes the logoutbyaccesstoken operation and its observable behavior.
//
// LogoutByAccessToken may return an error when input validation, dependency calls, or security checks fail.
// LogoutByAccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutByAccessToken(ctx context.Context, tokenStr string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	result := e.flows.LogoutByAccessToken(ctx, tokenStr)
	if result.Err != nil {
		if result.UserID == "" {
			return ErrTokenInvalid
		}
		return mapLineageErr(result.Err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, result.UserID, nil, nil)
	return nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	result := e.flows.ChangePassword(ctx, userID, oldPassword, newPassword)
	switch result.Failure {
	case flows.AccountFailureNone:
	case flows.AccountFailureUserLookup:
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, ErrUserNotFound, nil)
		return ErrUserNotFound
	case flows.AccountFailureInvalidOld:
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, userID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	case flows.AccountFailurePasswordReuse:
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, userID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	case flows.AccountFailurePasswordPolicy:
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	default:
		mapped := mapLineageErr(result.Err)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, mapped, nil)
		return mapped
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, nil, nil)
	return nil
}

// UpdateProfile describes the updateprofile operation and its observable behavior.
//
// UpdateProfile may return an error when input validation, dependency calls, or security checks fail.
// UpdateProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, input ProfileUpdate) (Identity, error) {
	if e == nil || e.userProvider == nil {
		return Identity{}, ErrEngineNotReady
	}

	user, err := e.userProvider.UpdateProfile(ctx, userID, input)
	if err != nil {
		return Identity{}, err
	}

	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdated, true, userID, nil, nil)
	return identityFromRecord(user), nil
}

// DeleteAccount describes the deleteaccount operation and its observable behavior.
//
// DeleteAccount may return an error when input validation, dependency calls, or security checks fail.
// DeleteAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	result := e.flows.DeleteAccount(ctx, userID)
	if result.Failure != flows.AccountFailureNone {
		return mapLineageErr(result.Err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, userID, nil, nil)
	return nil
}

// Identity describes the identity operation and its observable behavior.
//
// Identity may return an error when input validation, dependency calls, or security checks fail.
// Identity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Identity(ctx context.Context, userID string) (Identity, error) {
	if e == nil || e.userProvider == nil {
		return Identity{}, ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByID(userID)
	if err != nil {
		return Identity{}, ErrUserNotFound
	}
	return identityFromRecord(user), nil
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	return &AuthResult{
		UserID: claims.UID,
		Email:  claims.Email,
	}, nil
}

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport may return an error when input validation, dependency calls, or security checks fail.
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Production,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		RefreshRotationEnabled: true,
		ReuseDetectionEnabled:  true,
		SignupEnabled:          e.config.Account.SignupEnabled,
	}
}

func identityFromRecord(user UserRecord) Identity {
	return Identity{
		ID:        user.UserID,
		Email:     user.Email,
		Name:      user.Name,
		Nickname:  user.Nickname,
		AvatarURL: user.AvatarURL,
	}
}

// mapLineageErr normalizes store transport errors to the public sentinel
// while passing already-public errors through untouched.
func mapLineageErr(err error) error {
	if err == nil {
		return ErrUnauthorized
	}
	if errors.Is(err, lineage.ErrRedisUnavailable) {
		return ErrLineageUnavailable
	}
	return err
}
