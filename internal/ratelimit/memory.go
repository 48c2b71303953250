// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package ratelimit

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps attempt markers in a process-local expiring map.
// It is safe for concurrent use.
type MemoryStore struct {
	cache  *gocache.Cache
	window time.Duration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore. A positive cleanupInterval starts
// go-cache's janitor goroutine, which lives until the store is garbage
// collected; pass 0 to rely on lazy expiry only.
func NewMemoryStore(window, cleanupInterval time.Duration) *MemoryStore {
	window = normalizeWindow(window)
	return &MemoryStore{
		cache:  gocache.New(window, cleanupInterval),
		window: window,
	}
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	for range 2 {
		if err := s.cache.Add(key, struct{}{}, s.window); err == nil {
			Decisions.WithLabelValues("memory", DecisionAllowed).Inc()
			return true, 0, nil
		}
		if _, expires, found := s.cache.GetWithExpiration(key); found {
			Decisions.WithLabelValues("memory", DecisionThrottled).Inc()
			return false, max(time.Until(expires), 0), nil
		}
		// Expired between Add and Get; try once more.
	}
	Decisions.WithLabelValues("memory", DecisionThrottled).Inc()
	return false, s.window, nil
}

// Reset forgets key.
func (s *MemoryStore) Reset(key string) {
	s.cache.Delete(key)
}

// Close drops every marker. It cannot stop a janitor started by a positive
// cleanupInterval; that goroutine exits only once the store is collected.
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
