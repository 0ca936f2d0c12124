package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	redisclient "github.com/angelmondragon/bistro-backend/pkg/redis"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis, *redisclient.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redisclient.NewFromRaw(raw)

	manager, err := NewManager(client, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager, srv, client
}

func TestManagerGenerateAndRotate(t *testing.T) {
	manager, srv, client := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	token, err := manager.Generate(ctx, "access-123", userID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ttl := srv.TTL(client.AccessSessionKey("access-123")); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	rotated, err := manager.Rotate(ctx, "access-123", token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, rotated.UserID)
	}
	if srv.Exists(client.AccessSessionKey("access-123")) {
		t.Fatalf("old access key left behind")
	}

	ok, err := manager.HasSession(ctx, rotated.AccessID)
	if err != nil || !ok {
		t.Fatalf("expected new session to exist, ok=%v err=%v", ok, err)
	}

	if _, err := manager.Rotate(ctx, "access-123", token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("reusing a rotated token should fail, got %v", err)
	}
}

func TestManagerRotateWrongTokenBurnsSession(t *testing.T) {
	manager, srv, client := newTestManager(t)
	ctx := context.Background()

	token, err := manager.Generate(ctx, "access-9", uuid.New())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := manager.Rotate(ctx, "access-9", "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token error, got %v", err)
	}
	if srv.Exists(client.AccessSessionKey("access-9")) {
		t.Fatal("a failed rotation must still consume the session")
	}
	if _, err := manager.Rotate(ctx, "access-9", token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected the real token to be dead too, got %v", err)
	}
}

func TestManagerStoresOnlyTokenDigest(t *testing.T) {
	manager, srv, client := newTestManager(t)
	userID := uuid.New()

	token, err := manager.Generate(context.Background(), "access-7", userID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	stored, err := srv.Get(client.AccessSessionKey("access-7"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.Contains(stored, token) {
		t.Fatalf("raw refresh token persisted: %s", stored)
	}
	if !strings.Contains(stored, userID.String()) {
		t.Fatalf("owner missing from session record: %s", stored)
	}
}

func TestManagerRotateRejectsCorruptRecord(t *testing.T) {
	manager, srv, client := newTestManager(t)
	if err := srv.Set(client.AccessSessionKey("access-5"), "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := manager.Rotate(context.Background(), "access-5", "anything"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token, got %v", err)
	}
}

func TestManagerRevoke(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.Generate(ctx, "access-1", uuid.New()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := manager.Revoke(ctx, "access-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err := manager.HasSession(ctx, "access-1")
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if ok {
		t.Fatalf("expected session to be revoked")
	}
}

func TestNewManagerValidatesTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redisclient.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))

	if _, err := NewManager(client, config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30}); err == nil {
		t.Fatal("expected refresh ttl shorter than access ttl to fail")
	}
	if _, err := NewManager(nil, config.JWTConfig{}); err == nil {
		t.Fatal("expected nil client to fail")
	}
}
