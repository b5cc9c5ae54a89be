package lineage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHashMismatch is an exported constant or variable used by the authentication engine.
var ErrHashMismatch = errors.New("refresh hash mismatch")

// ErrNotFound is returned when the user has no active lineage.
var ErrNotFound = errors.New("lineage not found")

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusMismatch int64 = 1
	rotateStatusRotated  int64 = 2
)

const rotateLineageScript = `
local cur = redis.call("GET", KEYS[1])
if not cur then
  return 0
end
if cur ~= ARGV[1] then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`

var rotateLineageLua = redis.NewScript(rotateLineageScript)

// Store defines a public type used by auth APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore describes the newstore operation and its observable behavior.
//
// NewStore may return an error when input validation, dependency calls, or security checks fail.
// NewStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewStore(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{
		redis:  rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) key(userID string) string {
	return fmt.Sprintf("%s:lineage:%s", s.prefix, userID)
}

// Put overwrites the user's lineage with a new hash, invalidating whatever
// refresh credential was active before. Login and signup call this.
func (s *Store) Put(ctx context.Context, userID string, hash [32]byte) error {
	if err := s.redis.Set(ctx, s.key(userID), hash[:], s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Rotate atomically replaces the lineage hash using a Lua CAS script. This is
// the core of the rotation protocol that enables reuse detection.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: CAS prevents lost updates under concurrency.
func (s *Store) Rotate(ctx context.Context, userID string, providedHash, nextHash [32]byte) error {
	result, err := rotateLineageLua.Run(
		ctx,
		s.redis,
		[]string{s.key(userID)},
		providedHash[:],
		nextHash[:],
		s.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	code, ok := result.(int64)
	if !ok {
		return fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusMismatch:
		return ErrHashMismatch
	case rotateStatusRotated:
		return nil
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrRedisUnavailable, code)
	}
}

// Revoke deletes the user's lineage unconditionally. Deleting an absent
// lineage is not an error: logout must succeed regardless of server state.
func (s *Store) Revoke(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Current returns the stored hash, or ok=false when the user has no active
// lineage. Intended for introspection and tests.
func (s *Store) Current(ctx context.Context, userID string) ([32]byte, bool, error) {
	var hash [32]byte

	raw, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return hash, false, nil
	}
	if err != nil {
		return hash, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(raw) != len(hash) {
		return hash, false, errors.New("corrupt lineage entry")
	}

	copy(hash[:], raw)
	return hash, true, nil
}

// Ping reports backend reachability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (bool, time.Duration) {
	start := time.Now()
	err := s.redis.Ping(ctx).Err()
	return err == nil, time.Since(start)
}
