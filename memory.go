package stampede

import (
	"bytes"
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// record is a stored value with expiration.
type record struct {
	val []byte
	exp time.Time // Zero value means no expiry.
}

func (r record) expired(now time.Time) bool {
	return !r.exp.IsZero() && r.exp.Before(now)
}

// MemoryConfig controls in-memory store instance.
type MemoryConfig struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker

	// Name is store instance name, used in stats and logging.
	Name string

	// DeleteExpiredJobInterval is delay between two consecutive cleanups, default 1m.
	DeleteExpiredJobInterval time.Duration

	// ItemsCountReportInterval is items count metric report interval, default 1m.
	ItemsCountReportInterval time.Duration

	// ExpirationJitter is a fraction of ttl to randomize on Set, disabled by default.
	// If enabled, ttl will be randomly altered in bounds of ±(ExpirationJitter * ttl / 2).
	// Jitter can shrink the effective ttl, keep it disabled for entries whose
	// hard ttl must outlive the lock ttl.
	ExpirationJitter float64
}

var _ Store = &Memory{}

// Memory is an in-memory shared store, suitable for tests and for a caller
// population confined to a single process.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]record
	closed chan struct{}

	config MemoryConfig
	log    ctxd.Logger
	stat   stats.Tracker
}

// NewMemory creates an instance of in-memory store with optional configuration.
func NewMemory(cfg ...MemoryConfig) *Memory {
	config := MemoryConfig{}

	if len(cfg) >= 1 {
		config = cfg[0]
	}

	if config.DeleteExpiredJobInterval == 0 {
		config.DeleteExpiredJobInterval = time.Minute
	}

	if config.ItemsCountReportInterval == 0 {
		config.ItemsCountReportInterval = time.Minute
	}

	s := &Memory{
		data:   map[string]record{},
		config: config,
		log:    config.Logger,
		stat:   config.Stats,
		closed: make(chan struct{}),
	}

	if s.stat != nil {
		go s.reportItemsCount()
	}

	go s.cleaner()

	return s
}

// Get returns the value stored under key.
//
// An expired key reads as absent, staleness is the coordinator's business,
// the store only enforces hard expiry.
func (s *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	r, found := s.data[key]
	s.mu.RUnlock()

	if !found || r.expired(time.Now()) {
		if found {
			if s.stat != nil {
				s.stat.Add(ctx, MetricExpired, 1, "name", s.config.Name)
			}
		} else if s.stat != nil {
			s.stat.Add(ctx, MetricMiss, 1, "name", s.config.Name)
		}

		if s.log != nil {
			s.log.Debug(ctx, "store miss", "name", s.config.Name, "key", key)
		}

		return nil, ErrKeyNotFound
	}

	if s.stat != nil {
		s.stat.Add(ctx, MetricHit, 1, "name", s.config.Name)
	}

	if s.log != nil {
		s.log.Debug(ctx, "store hit", "name", s.config.Name, "key", key)
	}

	return r.val, nil
}

// Set stores value under key.
func (s *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.data[key] = record{val: value, exp: s.expiry(ttl)}
	s.mu.Unlock()

	if s.log != nil {
		s.log.Debug(ctx, "store write", "name", s.config.Name, "key", key, "ttl", ttl)
	}

	if s.stat != nil {
		s.stat.Add(ctx, MetricWrite, 1, "name", s.config.Name)
	}

	return nil
}

// SetNX stores value under key if the key is absent or expired.
func (s *Memory) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()

	r, found := s.data[key]
	if found && !r.expired(time.Now()) {
		s.mu.Unlock()

		return false, nil
	}

	s.data[key] = record{val: value, exp: s.expiry(ttl)}
	s.mu.Unlock()

	if s.log != nil {
		s.log.Debug(ctx, "store write if absent", "name", s.config.Name, "key", key, "ttl", ttl)
	}

	if s.stat != nil {
		s.stat.Add(ctx, MetricWrite, 1, "name", s.config.Name)
	}

	return true, nil
}

// CompareAndDelete deletes key if it currently holds expected.
func (s *Memory) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, found := s.data[key]
	if !found || r.expired(time.Now()) || !bytes.Equal(r.val, expected) {
		return false, nil
	}

	delete(s.data, key)

	if s.log != nil {
		s.log.Debug(ctx, "store delete", "name", s.config.Name, "key", key)
	}

	return true, nil
}

// RemoveAll deletes all entries.
func (s *Memory) RemoveAll() {
	s.mu.Lock()
	s.data = make(map[string]record)
	s.mu.Unlock()
}

// Len returns number of elements in store, expired entries included until cleanup.
func (s *Memory) Len() int {
	s.mu.RLock()
	cnt := len(s.data)
	s.mu.RUnlock()

	return cnt
}

// Close stops background jobs.
func (s *Memory) Close() {
	close(s.closed)
}

func (s *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}

	if s.config.ExpirationJitter > 0 {
		ttl += time.Duration(float64(ttl) * s.config.ExpirationJitter * (rand.Float64() - 0.5))
	}

	return time.Now().Add(ttl)
}

func (s *Memory) cleaner() {
	for {
		select {
		case <-time.After(s.config.DeleteExpiredJobInterval):
			s.clearExpired()
		case <-s.closed:
			return
		}
	}
}

func (s *Memory) clearExpired() {
	now := time.Now()
	keys := make([]string, 0, 100)

	s.mu.RLock()
	for k, r := range s.data {
		if r.expired(now) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	if len(keys) == 0 {
		return
	}

	if s.log != nil {
		s.log.Debug(context.Background(), "clearing expired store items",
			"name", s.config.Name,
			"items", keys,
		)
	}

	s.mu.Lock()
	for _, k := range keys {
		if r, found := s.data[k]; found && r.expired(now) {
			delete(s.data, k)
		}
	}
	s.mu.Unlock()
}

func (s *Memory) reportItemsCount() {
	for {
		select {
		case <-time.After(s.config.ItemsCountReportInterval):
			count := s.Len()

			if s.log != nil {
				s.log.Debug(context.Background(), "store items count",
					"name", s.config.Name,
					"count", count,
				)
			}

			s.stat.Set(context.Background(), MetricItems, float64(count), "name", s.config.Name)
		case <-s.closed:
			return
		}
	}
}
