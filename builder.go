package auth

import (
	"context"
	"errors"
	"log"

	"github.com/memoria-app/auth/internal"
	"github.com/memoria-app/auth/internal/flows"
	"github.com/memoria-app/auth/jwt"
	"github.com/memoria-app/auth/lineage"
	"github.com/memoria-app/auth/password"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by auth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	userProvider UserProvider
	auditSink    AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserProvider describes the withuserprovider operation and its observable behavior.
//
// WithUserProvider may return an error when input validation, dependency calls, or security checks fail.
// WithUserProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	// -------- LINEAGE STORE --------
	store := lineage.NewStore(b.redis, cfg.Lineage.RedisPrefix, cfg.JWT.RefreshTTL)

	provider := b.userProvider

	// issuePair mints a fresh credential pair and starts a new lineage,
	// invalidating whatever refresh credential the user held before.
	issuePair := func(ctx context.Context, userID, email string) (string, string, error) {
		secret, err := internal.NewRefreshSecret()
		if err != nil {
			return "", "", err
		}
		if err := store.Put(ctx, userID, internal.HashRefreshSecret(secret)); err != nil {
			return "", "", err
		}
		refresh, err := internal.EncodeRefreshCredential(userID, secret)
		if err != nil {
			return "", "", err
		}
		access, err := jm.CreateAccess(userID, email)
		if err != nil {
			return "", "", err
		}
		return access, refresh, nil
	}

	// -------- FLOW WIRING --------
	deps := flows.Deps{
		Login: flows.LoginDeps{
			LookupUser: func(email string) (flows.LoginUserRecord, error) {
				user, err := provider.GetUserByEmail(email)
				if err != nil {
					return flows.LoginUserRecord{}, err
				}
				return flows.LoginUserRecord{
					UserID:       user.UserID,
					Email:        user.Email,
					PasswordHash: user.PasswordHash,
				}, nil
			},
			VerifyPassword: ph.Verify,
			IssuePair:      issuePair,
		},
		Signup: flows.SignupDeps{
			Enabled:      func() bool { return cfg.Account.SignupEnabled },
			AutoLogin:    func() bool { return cfg.Account.AutoLogin },
			HashPassword: ph.Hash,
			CreateUser: func(ctx context.Context, email, passwordHash, name, nickname string) (flows.SignupUserRecord, error) {
				user, err := provider.CreateUser(ctx, CreateUserInput{
					Email:        email,
					PasswordHash: passwordHash,
					Name:         name,
					Nickname:     nickname,
				})
				if err != nil {
					return flows.SignupUserRecord{}, err
				}
				return flows.SignupUserRecord{
					UserID: user.UserID,
					Email:  user.Email,
				}, nil
			},
			IssuePair:    issuePair,
			DuplicateErr: ErrProviderDuplicateEmail,
		},
		Refresh: flows.RefreshDeps{
			DecodeCredential: internal.DecodeRefreshCredential,
			NewSecret:        internal.NewRefreshSecret,
			HashSecret:       internal.HashRefreshSecret,
			EncodeCredential: internal.EncodeRefreshCredential,
			LookupUser: func(userID string) (flows.RefreshUserRecord, error) {
				user, err := provider.GetUserByID(userID)
				if err != nil {
					return flows.RefreshUserRecord{}, err
				}
				return flows.RefreshUserRecord{
					UserID: user.UserID,
					Email:  user.Email,
				}, nil
			},
			IssueAccess:    jm.CreateAccess,
			LineageStore:   store,
			HashMismatch:   lineage.ErrHashMismatch,
			LineageMissing: lineage.ErrNotFound,
		},
		Logout: flows.LogoutDeps{
			ParseAccess:  jm.ParseAccess,
			LineageStore: store,
		},
		Account: flows.AccountDeps{
			LookupUser: func(userID string) (flows.AccountUserRecord, error) {
				user, err := provider.GetUserByID(userID)
				if err != nil {
					return flows.AccountUserRecord{}, err
				}
				return flows.AccountUserRecord{
					UserID:       user.UserID,
					Email:        user.Email,
					PasswordHash: user.PasswordHash,
				}, nil
			},
			VerifyPassword:     ph.Verify,
			HashPassword:       ph.Hash,
			UpdatePasswordHash: provider.UpdatePasswordHash,
			DeleteUser:         provider.DeleteUser,
			LineageStore:       store,
			Warn:               log.Printf,
		},
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		lineageStore: store,
		flows:        flows.New(deps),
		passwordHash: ph,
		jwtManager:   jm,
		userProvider: provider,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
