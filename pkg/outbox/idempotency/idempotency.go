package idempotency

import (
	"context"
	"errors"
	"time"
)

// Store is the slice of the redis client the dedupe guard needs.
type Store interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	ConsumerKey(consumer, eventID string) string
}

// Manager remembers which event ids a consumer already handled. Keys expire
// after ttl so the keyspace does not grow without bound.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim marks the event as taken by consumer. It returns false when another
// delivery already claimed it.
func (m *Manager) Claim(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
}

// Release forgets a claim so a redelivery can retry after a failed handler.
func (m *Manager) Release(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer, eventID string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return m.store.ConsumerKey(consumer, eventID), nil
}
