package lineage

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "authtest", time.Hour), mr
}

func hashOf(label string) [32]byte {
	return sha256.Sum256([]byte(label))
}

func TestPutAndCurrent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()
	h0 := hashOf("h0")

	if err := store.Put(ctx, userID, h0); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, ok, err := store.Current(ctx, userID)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if !ok {
		t.Fatal("expected active lineage")
	}
	if got != h0 {
		t.Fatal("stored hash mismatch")
	}
}

func TestCurrentMissingLineage(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok, err := store.Current(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if ok {
		t.Fatal("expected no lineage for unknown user")
	}
}

func TestRotateSuccess(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()
	h0, h1 := hashOf("h0"), hashOf("h1")

	if err := store.Put(ctx, userID, h0); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Rotate(ctx, userID, h0, h1); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	got, ok, err := store.Current(ctx, userID)
	if err != nil || !ok {
		t.Fatalf("current after rotate: ok=%v err=%v", ok, err)
	}
	if got != h1 {
		t.Fatal("rotate did not advance the lineage hash")
	}
}

func TestRotateMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()
	h0, h1, h2 := hashOf("h0"), hashOf("h1"), hashOf("h2")

	if err := store.Put(ctx, userID, h0); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Rotate(ctx, userID, h0, h1); err != nil {
		t.Fatalf("first rotate failed: %v", err)
	}

	// Presenting h0 again is exactly the replayed-credential case.
	err := store.Rotate(ctx, userID, h0, h2)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}

	got, _, err := store.Current(ctx, userID)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if got != h1 {
		t.Fatal("failed rotate must not modify the lineage")
	}
}

func TestRotateMissingLineage(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Rotate(context.Background(), uuid.NewString(), hashOf("h0"), hashOf("h1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	if err := store.Put(ctx, userID, hashOf("h0")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Revoke(ctx, userID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, userID); err != nil {
		t.Fatalf("repeated revoke must succeed: %v", err)
	}

	_, ok, err := store.Current(ctx, userID)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if ok {
		t.Fatal("lineage should be gone after revoke")
	}
}

func TestLineageExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()

	if err := store.Put(ctx, userID, hashOf("h0")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	_, ok, err := store.Current(ctx, userID)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if ok {
		t.Fatal("lineage should expire with its ttl")
	}
}

func TestRedisDownSurfacesUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.Put(context.Background(), uuid.NewString(), hashOf("h0"))
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
