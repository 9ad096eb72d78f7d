package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/fastinghub/pulse/internal/cache"
)

// RateStore counts hits against a key inside a rolling window.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

const memorySweepInterval = time.Minute

// memoryRateStore keeps counters in the process. Suitable for tests and
// single-node deployments; multi-node setups want the shared store below.
type memoryRateStore struct {
	mu       sync.Mutex
	counters map[string]memoryWindow
	sweepAt  time.Time
	clock    func() time.Time
}

type memoryWindow struct {
	hits int
	ends time.Time
}

// NewMemoryRateStore builds a process-local rate store.
func NewMemoryRateStore() RateStore {
	return &memoryRateStore{
		counters: make(map[string]memoryWindow),
		clock:    time.Now,
	}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	w, ok := s.counters[key]
	if !ok || now.After(w.ends) {
		w = memoryWindow{ends: now.Add(window)}
	}
	w.hits++
	s.counters[key] = w

	return w.hits, w.ends.Sub(now), nil
}

// sweepLocked drops lapsed windows at most once a minute so the map does
// not keep one entry per client forever.
func (s *memoryRateStore) sweepLocked(now time.Time) {
	if now.Before(s.sweepAt) {
		return
	}
	s.sweepAt = now.Add(memorySweepInterval)
	for key, w := range s.counters {
		if now.After(w.ends) {
			delete(s.counters, key)
		}
	}
}

// sharedRateStore rides on the cache backend, so limits hold across
// instances when Redis is configured and survive restarts on the database
// fallback.
type sharedRateStore struct {
	store cache.Store
}

// NewRedisRateStore adapts the Redis cache into a RateStore.
func NewRedisRateStore(store cache.Store) RateStore {
	return newSharedRateStore(store)
}

// NewDatabaseRateStore adapts the database cache into a RateStore.
func NewDatabaseRateStore(store cache.Store) RateStore {
	return newSharedRateStore(store)
}

func newSharedRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &sharedRateStore{store: store}
}

func (s *sharedRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
