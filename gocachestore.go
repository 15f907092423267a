package stampede

import (
	"bytes"
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Store = &GoCache{}

// GoCache adapts a patrickmn/go-cache instance to the Store contract.
//
// go-cache has no conditional delete, so all operations run under an adapter
// mutex to keep CompareAndDelete atomic against concurrent SetNX.
type GoCache struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// NewGoCache creates a store on top of a go-cache instance.
//
// A nil argument creates a fresh instance with a 5 minute cleanup interval.
// The instance must not be written to directly once handed to the store.
func NewGoCache(c *gocache.Cache) *GoCache {
	if c == nil {
		c = gocache.New(gocache.NoExpiration, 5*time.Minute)
	}

	return &GoCache{c: c}
}

// Get returns the value stored under key.
func (s *GoCache) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, found := s.c.Get(key)
	if !found {
		return nil, ErrKeyNotFound
	}

	b, _ := v.([]byte)

	return b, nil
}

// Set stores value under key.
func (s *GoCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Set(key, value, gocacheTTL(ttl))

	return nil
}

// SetNX stores value under key only if the key is absent.
func (s *GoCache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.c.Add(key, value, gocacheTTL(ttl)); err != nil {
		return false, nil
	}

	return true, nil
}

// CompareAndDelete deletes key if it currently holds expected.
func (s *GoCache) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, found := s.c.Get(key)
	if !found {
		return false, nil
	}

	b, _ := v.([]byte)
	if !bytes.Equal(b, expected) {
		return false, nil
	}

	s.c.Delete(key)

	return true, nil
}

func gocacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}

	return ttl
}
