package stampede

import (
	"context"
	"errors"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

// DefaultFetchTimeout bounds an upstream fetch when Config.FetchTimeout is not set.
const DefaultFetchTimeout = 10 * time.Second

// FetchFunc produces the canonical value from the upstream source.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Config is configuration for New.
type Config struct {
	// Name is added to logs and stats.
	Name string

	// CacheKey is the store key holding the cache entry, required.
	CacheKey string

	// LockKey is the store key holding the refresh lock, default "lock:" + CacheKey.
	LockKey string

	// SoftTTL is the entry age below which the cached value is served without refresh.
	SoftTTL time.Duration

	// LockTTL is the max time a refresh may hold the lock before it is presumed dead.
	LockTTL time.Duration

	// HardTTL is the absolute expiry of the cache entry in the store.
	// Must not be below LockTTL or SoftTTL, so that a crashed refresher can not
	// orphan-expire good data before a new refresh happens.
	HardTTL time.Duration

	// FetchTimeout bounds a single upstream fetch, default DefaultFetchTimeout.
	FetchTimeout time.Duration

	// Store is a shared store instance, in-memory created by default.
	//
	// Coordinators in different processes serve the same key safely as long as
	// they share the store.
	Store Store

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker
}

// Coordinator serves reads of a single cached value and lets at most one
// caller refresh it when it goes stale.
//
// Please use New to create an instance.
type Coordinator[V any] struct {
	config Config
	store  Store
	fetch  FetchFunc[V]
	lock   Lock
	log    ctxd.Logger
	stat   stats.Tracker
}

// New creates a Coordinator for a single cache key.
//
// There is no in-process mutex: exclusivity of a refresh rests entirely on
// the store's atomic set-if-absent primitive, so the guarantee holds for any
// number of processes sharing the store.
func New[V any](config Config, fetch FetchFunc[V]) (*Coordinator[V], error) {
	if fetch == nil {
		return nil, errors.New("nil fetch function")
	}

	if config.CacheKey == "" {
		return nil, errors.New("empty cache key")
	}

	if config.SoftTTL <= 0 || config.LockTTL <= 0 || config.HardTTL <= 0 {
		return nil, errors.New("soft, lock and hard ttl must be positive")
	}

	if config.HardTTL < config.LockTTL || config.HardTTL < config.SoftTTL {
		return nil, errors.New("hard ttl must not be below lock ttl and soft ttl")
	}

	if config.LockKey == "" {
		config.LockKey = "lock:" + config.CacheKey
	}

	if config.FetchTimeout == 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}

	c := &Coordinator[V]{
		config: config,
		fetch:  fetch,
	}

	c.log = config.Logger
	if c.log == nil {
		c.log = ctxd.NoOpLogger{}
	}

	c.stat = config.Stats
	if c.stat == nil {
		c.stat = stats.NoOp{}
	}

	c.store = config.Store
	if c.store == nil {
		c.store = NewMemory()
	}

	c.lock = Lock{
		Store:  c.store,
		Key:    config.LockKey,
		TTL:    config.LockTTL,
		Logger: c.log,
	}

	return c, nil
}

// Read returns the cached value if it is younger than the soft ttl, otherwise
// refreshes it from upstream under the shared lock.
//
// When the lock is owned elsewhere, or the fetch fails, a stale value is
// served if one exists, the caller is never blocked waiting for an in-flight
// refresh. Only cold starts surface errors: ErrUpstreamUnavailable after a
// failed fetch and ErrDataUnavailable while another caller owns the refresh.
func (c *Coordinator[V]) Read(ctx context.Context) (V, error) { //nolint:cyclop
	var zero V

	prev, found := c.readEntry(ctx)

	if found {
		if prev.Age(time.Now()) < c.config.SoftTTL {
			c.stat.Add(ctx, MetricHit, 1, "name", c.config.Name)

			return prev.Value, nil
		}

		c.stat.Add(ctx, MetricExpired, 1, "name", c.config.Name)
		c.log.Debug(ctx, "cache entry stale",
			"name", c.config.Name,
			"key", c.config.CacheKey,
			"updatedAt", prev.Time())
	}

	token, acquired, err := c.lock.Acquire(ctx)
	if err != nil {
		// Failing to acquire is a signal, not an error, store trouble reads as a busy lock.
		c.log.Warn(ctx, "failed to acquire refresh lock",
			"error", err,
			"name", c.config.Name,
			"key", c.config.LockKey)
	}

	if !acquired {
		c.stat.Add(ctx, MetricLockBusy, 1, "name", c.config.Name)

		if found {
			c.stat.Add(ctx, MetricStale, 1, "name", c.config.Name)
			c.log.Debug(ctx, "refresh owned elsewhere, serving stale value",
				"name", c.config.Name,
				"key", c.config.CacheKey)

			return prev.Value, nil
		}

		return zero, ErrDataUnavailable
	}

	// Release must survive caller cancellation, otherwise the lock stalls
	// everyone else until lock ttl.
	defer func() {
		rerr := c.lock.Release(detachedContext{ctx}, token)

		switch {
		case rerr == nil:
		case errors.Is(rerr, ErrLockNotHeld):
			c.stat.Add(ctx, MetricLockLost, 1, "name", c.config.Name)
		default:
			c.log.Warn(ctx, "failed to release refresh lock",
				"error", rerr,
				"name", c.config.Name,
				"key", c.config.LockKey)
		}
	}()

	value, err := c.doFetch(ctx)
	if err != nil {
		c.stat.Add(ctx, MetricFailed, 1, "name", c.config.Name)

		if found {
			c.stat.Add(ctx, MetricStale, 1, "name", c.config.Name)
			c.log.Warn(ctx, "upstream fetch failed, serving stale value",
				"error", err,
				"name", c.config.Name,
				"key", c.config.CacheKey)

			return prev.Value, nil
		}

		c.log.Error(ctx, "upstream fetch failed with no cached value",
			"error", err,
			"name", c.config.Name)

		return zero, ErrUpstreamUnavailable
	}

	if err := c.writeEntry(ctx, value, prev.UpdatedAt); err != nil {
		// Fetched value is still served, next read retries the write.
		c.log.Error(ctx, "failed to write cache entry",
			"error", err,
			"name", c.config.Name,
			"key", c.config.CacheKey)
	}

	return value, nil
}

// ExpireNow marks the cached entry stale so that the next read attempts a
// refresh before the soft ttl runs out.
//
// The entry value is kept in the store and remains servable as a stale
// fallback.
func (c *Coordinator[V]) ExpireNow(ctx context.Context) error {
	prev, found := c.readEntry(ctx)
	if !found {
		return nil
	}

	prev.UpdatedAt = 0

	b, err := encodeEntry(prev)
	if err != nil {
		return ctxd.WrapError(ctx, err, "failed to encode cache entry", "key", c.config.CacheKey)
	}

	return c.store.Set(ctx, c.config.CacheKey, b, c.config.HardTTL)
}

// InvalidationCallback returns a callback to register with Invalidator.
func (c *Coordinator[V]) InvalidationCallback() func() {
	return func() {
		ctx := context.Background()

		if err := c.ExpireNow(ctx); err != nil {
			c.log.Error(ctx, "failed to expire cache entry",
				"error", err,
				"name", c.config.Name,
				"key", c.config.CacheKey)
		}
	}
}

func (c *Coordinator[V]) readEntry(ctx context.Context) (Entry[V], bool) {
	var e Entry[V]

	if SkipRead(ctx) {
		return e, false
	}

	b, err := c.store.Get(ctx, c.config.CacheKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			c.stat.Add(ctx, MetricMiss, 1, "name", c.config.Name)
			c.log.Debug(ctx, "cache miss", "name", c.config.Name, "key", c.config.CacheKey)
		} else {
			// Store trouble reads as a miss, refresh path takes over.
			c.log.Warn(ctx, "failed to read cache entry",
				"error", err,
				"name", c.config.Name,
				"key", c.config.CacheKey)
		}

		return e, false
	}

	e, err = decodeEntry[V](b)
	if err != nil {
		c.log.Warn(ctx, "failed to decode cache entry",
			"error", err,
			"name", c.config.Name,
			"key", c.config.CacheKey)

		return Entry[V]{}, false
	}

	return e, true
}

func (c *Coordinator[V]) doFetch(ctx context.Context) (V, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
	defer cancel()

	c.stat.Add(ctx, MetricBuild, 1, "name", c.config.Name)
	c.log.Debug(ctx, "fetching value from upstream", "name", c.config.Name)

	return c.fetch(ctx)
}

func (c *Coordinator[V]) writeEntry(ctx context.Context, value V, prevUpdatedAt int64) error {
	updatedAt := time.Now().Unix()

	// A refresh never back-dates the entry, even after an overlapping write by
	// a refresher that outlived its lock.
	if prevUpdatedAt > updatedAt {
		updatedAt = prevUpdatedAt
	}

	b, err := encodeEntry(Entry[V]{Value: value, UpdatedAt: updatedAt})
	if err != nil {
		return err
	}

	ttl := TTL(ctx)
	if ttl == DefaultTTL {
		ttl = c.config.HardTTL
	}

	if err := c.store.Set(ctx, c.config.CacheKey, b, ttl); err != nil {
		return err
	}

	c.stat.Add(ctx, MetricWrite, 1, "name", c.config.Name)
	c.log.Debug(ctx, "wrote cache entry",
		"name", c.config.Name,
		"key", c.config.CacheKey,
		"ttl", ttl)

	return nil
}
