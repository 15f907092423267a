package stampede

import (
	"context"
	"errors"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/redis/go-redis/v9"
)

// compareAndDeleteScript deletes a key only while it holds the expected value,
// in a single server-side step.
var compareAndDeleteScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// RedisConfig controls Redis store instance.
type RedisConfig struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker

	// Name is store instance name, used in stats and logging.
	Name string
}

var _ Store = &Redis{}

// Redis is a shared store on top of a Redis client, the backend of choice for
// a caller population spread over multiple processes or machines.
type Redis struct {
	client redis.UniversalClient
	config RedisConfig
	log    ctxd.Logger
	stat   stats.Tracker
}

// NewRedis creates a store instance on top of a Redis client with optional configuration.
func NewRedis(client redis.UniversalClient, cfg ...RedisConfig) *Redis {
	config := RedisConfig{}

	if len(cfg) >= 1 {
		config = cfg[0]
	}

	return &Redis{
		client: client,
		config: config,
		log:    config.Logger,
		stat:   config.Stats,
	}
}

// Get returns the value stored under key.
func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			if s.stat != nil {
				s.stat.Add(ctx, MetricMiss, 1, "name", s.config.Name)
			}

			if s.log != nil {
				s.log.Debug(ctx, "store miss", "name", s.config.Name, "key", key)
			}

			return nil, ErrKeyNotFound
		}

		return nil, ctxd.WrapError(ctx, err, "failed to read redis key", "key", key)
	}

	if s.stat != nil {
		s.stat.Add(ctx, MetricHit, 1, "name", s.config.Name)
	}

	return b, nil
}

// Set stores value under key.
func (s *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // Redis treats zero expiration as no expiry.
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return ctxd.WrapError(ctx, err, "failed to write redis key", "key", key)
	}

	if s.stat != nil {
		s.stat.Add(ctx, MetricWrite, 1, "name", s.config.Name)
	}

	return nil
}

// SetNX stores value under key only if the key is absent, in a single SET NX call.
func (s *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}

	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, ctxd.WrapError(ctx, err, "failed to write redis key if absent", "key", key)
	}

	if ok && s.stat != nil {
		s.stat.Add(ctx, MetricWrite, 1, "name", s.config.Name)
	}

	return ok, nil
}

// CompareAndDelete deletes key if it currently holds expected, via a server-side script.
func (s *Redis) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	res, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, string(expected)).Int()
	if err != nil {
		return false, ctxd.WrapError(ctx, err, "failed to delete redis key", "key", key)
	}

	return res == 1, nil
}
