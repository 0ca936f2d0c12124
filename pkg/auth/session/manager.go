// Package session keeps refresh sessions in Redis, one key per access token
// jti. A refresh token is single use: presenting it deletes the session
// whether or not it matches.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	redisclient "github.com/angelmondragon/bistro-backend/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errMissingAccessID     = errors.New("access id is required")
)

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager issues and rotates refresh tokens. Only a digest of the token is
// stored; the owning user is kept so a refresh re-reads the user's role.
type Manager struct {
	store sessionStore
	ttl   time.Duration
	now   func() time.Time
}

// Rotated is the result of a successful refresh.
type Rotated struct {
	AccessID     string
	RefreshToken string
	UserID       uuid.UUID
}

type record struct {
	UserID   uuid.UUID `json:"uid"`
	Digest   string    `json:"digest"`
	IssuedAt time.Time `json:"iat"`
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case ttl <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case ttl <= access:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{store: client, ttl: ttl, now: time.Now}, nil
}

// Generate opens a session for userID under accessID and returns the raw
// refresh token. The token is not recoverable from Redis.
func (m *Manager) Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error) {
	if blank(accessID) {
		return "", errMissingAccessID
	}
	if userID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	body, err := json.Marshal(record{UserID: userID, Digest: digest(token), IssuedAt: m.now().UTC()})
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), body, m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate consumes the session under oldAccessID and opens a new one for the
// same user.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, presented string) (Rotated, error) {
	if blank(oldAccessID) || blank(presented) {
		return Rotated{}, ErrInvalidRefreshToken
	}

	stored, err := m.store.GetDel(ctx, m.store.AccessSessionKey(oldAccessID))
	if errors.Is(err, redislib.Nil) {
		return Rotated{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return Rotated{}, err
	}
	var rec record
	if err := json.Unmarshal([]byte(stored), &rec); err != nil || rec.UserID == uuid.Nil {
		return Rotated{}, ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(rec.Digest), []byte(digest(presented))) != 1 {
		return Rotated{}, ErrInvalidRefreshToken
	}

	next := Rotated{AccessID: NewAccessID(), UserID: rec.UserID}
	if next.RefreshToken, err = m.Generate(ctx, next.AccessID, rec.UserID); err != nil {
		return Rotated{}, err
	}
	return next, nil
}

// Revoke ends the session tied to accessID. Unknown ids are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errMissingAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errMissingAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// NewAccessID mints the jti that keys a session.
func NewAccessID() string {
	return uuid.NewString()
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
