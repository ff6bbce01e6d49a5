// Package idempotency lets trigger firings claim an event id so that a redelivered event does
// not start a second execution.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrEmptyKey = errors.New("idempotency key is required")

// Store records claimed keys for a limited time.
type Store interface {
	// Claim returns true when the key was not claimed yet and is now held for ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryStore keeps claims in process memory. Claims are lost on restart.
type MemoryStore struct {
	clock  clockwork.Clock
	mu     sync.Mutex
	claims map[string]time.Time
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &MemoryStore{clock: clock, claims: make(map[string]time.Time)}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	for k, expiresAt := range s.claims {
		if !now.Before(expiresAt) {
			delete(s.claims, k)
		}
	}

	if _, held := s.claims[key]; held {
		return false, nil
	}

	s.claims[key] = now.Add(ttl)

	return true, nil
}
