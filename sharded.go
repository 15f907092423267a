package stampede

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/cespare/xxhash/v2"
)

const shards = 64

type bucket struct {
	sync.RWMutex
	data map[string]record
}

var _ Store = &Sharded{}

// Sharded is an in-memory shared store with xxhash-distributed buckets.
//
// Per-bucket locking reduces contention when many coordinators with distinct
// keys share one store instance. Atomicity of SetNX and CompareAndDelete
// holds per key, a key always lands in the same bucket.
type Sharded struct {
	buckets [shards]bucket
	closed  chan struct{}

	config MemoryConfig
	log    ctxd.Logger
	stat   stats.Tracker
}

// NewSharded creates an instance of sharded in-memory store with optional configuration.
func NewSharded(cfg ...MemoryConfig) *Sharded {
	config := MemoryConfig{}

	if len(cfg) >= 1 {
		config = cfg[0]
	}

	if config.DeleteExpiredJobInterval == 0 {
		config.DeleteExpiredJobInterval = time.Minute
	}

	s := &Sharded{
		config: config,
		log:    config.Logger,
		stat:   config.Stats,
		closed: make(chan struct{}),
	}

	for i := 0; i < shards; i++ {
		s.buckets[i].data = make(map[string]record)
	}

	go s.cleaner()

	return s
}

func (s *Sharded) bucketFor(key string) *bucket {
	return &s.buckets[xxhash.Sum64String(key)%shards]
}

// Get returns the value stored under key, expired keys read as absent.
func (s *Sharded) Get(ctx context.Context, key string) ([]byte, error) {
	b := s.bucketFor(key)

	b.RLock()
	r, found := b.data[key]
	b.RUnlock()

	if !found || r.expired(time.Now()) {
		if s.stat != nil {
			s.stat.Add(ctx, MetricMiss, 1, "name", s.config.Name)
		}

		return nil, ErrKeyNotFound
	}

	if s.stat != nil {
		s.stat.Add(ctx, MetricHit, 1, "name", s.config.Name)
	}

	return r.val, nil
}

// Set stores value under key.
func (s *Sharded) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b := s.bucketFor(key)

	b.Lock()
	b.data[key] = record{val: value, exp: expiry(ttl)}
	b.Unlock()

	if s.stat != nil {
		s.stat.Add(ctx, MetricWrite, 1, "name", s.config.Name)
	}

	return nil
}

// SetNX stores value under key if the key is absent or expired.
func (s *Sharded) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	b := s.bucketFor(key)

	b.Lock()
	defer b.Unlock()

	r, found := b.data[key]
	if found && !r.expired(time.Now()) {
		return false, nil
	}

	b.data[key] = record{val: value, exp: expiry(ttl)}

	if s.stat != nil {
		s.stat.Add(ctx, MetricWrite, 1, "name", s.config.Name)
	}

	return true, nil
}

// CompareAndDelete deletes key if it currently holds expected.
func (s *Sharded) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	b := s.bucketFor(key)

	b.Lock()
	defer b.Unlock()

	r, found := b.data[key]
	if !found || r.expired(time.Now()) || !bytes.Equal(r.val, expected) {
		return false, nil
	}

	delete(b.data, key)

	return true, nil
}

// Len returns number of elements in store, expired entries included until cleanup.
func (s *Sharded) Len() int {
	cnt := 0

	for i := range s.buckets {
		b := &s.buckets[i]

		b.RLock()
		cnt += len(b.data)
		b.RUnlock()
	}

	return cnt
}

// Close stops background jobs.
func (s *Sharded) Close() {
	close(s.closed)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}

	return time.Now().Add(ttl)
}

func (s *Sharded) cleaner() {
	for {
		select {
		case <-time.After(s.config.DeleteExpiredJobInterval):
			s.clearExpired()
		case <-s.closed:
			return
		}
	}
}

func (s *Sharded) clearExpired() {
	now := time.Now()
	cleared := 0

	for i := range s.buckets {
		b := &s.buckets[i]

		b.Lock()
		for k, r := range b.data {
			if r.expired(now) {
				delete(b.data, k)

				cleared++
			}
		}
		b.Unlock()
	}

	if cleared > 0 && s.log != nil {
		s.log.Debug(context.Background(), "cleared expired store items",
			"name", s.config.Name,
			"count", cleared,
		)
	}
}
