package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/riftstats/backend-next/internal/pkg/observability"
)

// Set is a keyed two-tier cache: a bounded in-process tier in front of a
// shared redis tier. Writes go through both tiers; reads check memory first
// and promote redis hits. Redis failures degrade the Set to memory-only
// behavior and are never propagated to the caller of Get/Set.
type Set[T any] struct {
	// m guards MutexGetSet against concurrent recomputation of the same value
	m sync.Mutex

	name   string
	prefix string
	memory *gocache.Cache

	hits   int64
	misses int64
}

func NewSet[T any](name string) *Set[T] {
	s := &Set[T]{
		name:   name,
		prefix: name + ":",
		memory: gocache.New(5*time.Minute, 10*time.Minute),
	}
	register(s)
	return s
}

func (c *Set[T]) Name() string {
	return c.name
}

func (c *Set[T]) key(key string) string {
	return c.prefix + key
}

func (c *Set[T]) Get(key string, dest *T) error {
	if v, ok := c.memory.Get(key); ok {
		*dest = v.(T)
		atomic.AddInt64(&c.hits, 1)
		observability.CacheHits.WithLabelValues(c.name, "memory").Inc()
		return nil
	}

	client := redisClient()
	if client == nil {
		atomic.AddInt64(&c.misses, 1)
		observability.CacheMisses.WithLabelValues(c.name).Inc()
		return ErrNotFound
	}

	resp, err := client.Get(context.Background(), c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Error().Err(err).Str("key", c.key(key)).Msg("failed to get value from redis")
		}
		atomic.AddInt64(&c.misses, 1)
		observability.CacheMisses.WithLabelValues(c.name).Inc()
		return ErrNotFound
	}
	var value T
	if err := msgpack.Unmarshal(resp, &value); err != nil {
		log.Error().Err(err).Str("key", c.key(key)).Msg("failed to unmarshal value from msgpack from redis")
		atomic.AddInt64(&c.misses, 1)
		observability.CacheMisses.WithLabelValues(c.name).Inc()
		return ErrNotFound
	}

	// promote to the memory tier so subsequent reads stay in-process
	c.memory.Set(key, value, gocache.DefaultExpiration)
	*dest = value
	atomic.AddInt64(&c.hits, 1)
	observability.CacheHits.WithLabelValues(c.name, "redis").Inc()
	return nil
}

func (c *Set[T]) Set(key string, value T, expire time.Duration) error {
	c.memory.Set(key, value, expire)

	client := redisClient()
	if client == nil {
		return nil
	}
	b, err := msgpack.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", c.key(key)).Msg("failed to marshal value with msgpack")
		return nil
	}
	if err := client.Set(context.Background(), c.key(key), b, expire).Err(); err != nil {
		log.Error().Err(err).Str("key", c.key(key)).Msg("failed to set value to redis; degrading to memory-only")
	}
	return nil
}

// MutexGetSet gets value from cache and writes to dest, or if the key does not
// exist, executes valueFunc to compute it, sets it to both tiers and writes it
// to dest. Concurrent callers for a missing key are serialized so the value is
// only computed once. The first return value reports whether the value had to
// be calculated: true means calculated, false means served from cache.
func (c *Set[T]) MutexGetSet(key string, dest *T, valueFunc func() (T, error), expire time.Duration) (bool, error) {
	if err := c.Get(key, dest); err == nil {
		return false, nil
	}
	// onwards, cache key does not exist

	return true, c.slowMutexGetSet(key, dest, valueFunc, expire)
}

func (c *Set[T]) slowMutexGetSet(key string, dest *T, valueFunc func() (T, error), expire time.Duration) error {
	c.m.Lock()
	defer c.m.Unlock()
	if err := c.Get(key, dest); err == nil {
		return nil
	}

	value, err := valueFunc()
	if err != nil {
		log.Error().Err(err).Str("key", c.key(key)).Msg("failed to get value from valueFunc() in MutexGetSet")
		return err
	}

	if err := c.Set(key, value, expire); err != nil {
		return err
	}

	*dest = value
	return nil
}

func (c *Set[T]) Delete(key string) error {
	c.memory.Delete(key)

	client := redisClient()
	if client == nil {
		return nil
	}
	if err := client.Del(context.Background(), c.key(key)).Err(); err != nil {
		log.Error().Err(err).Str("key", c.key(key)).Msg("failed to delete value from redis")
		return err
	}
	return nil
}

// DeletePrefix invalidates every key of this Set starting with the given
// prefix, in both tiers. Used for scoped invalidation, such as dropping all
// cached results of one player on new-match ingestion.
func (c *Set[T]) DeletePrefix(prefix string) error {
	for k := range c.memory.Items() {
		if strings.HasPrefix(k, prefix) {
			c.memory.Delete(k)
		}
	}

	client := redisClient()
	if client == nil {
		return nil
	}
	script := redis.NewScript(`local keys = redis.call('keys', ARGV[1])
		for i=1,#keys,5000 do
			redis.call('del', unpack(keys, i, math.min(i+4999, #keys)))
		end
	return keys`)
	if err := script.Eval(context.Background(), client, []string{}, []string{c.prefix + prefix + "*"}).Err(); err != nil {
		log.Error().Err(err).Str("prefix", c.prefix+prefix).Msg("failed to delete cache keys by prefix")
		return err
	}
	return nil
}

// Flush invalidates every key under this Set's prefix, in both tiers.
func (c *Set[T]) Flush() error {
	c.memory.Flush()

	client := redisClient()
	if client == nil {
		return nil
	}
	script := redis.NewScript(`local keys = redis.call('keys', ARGV[1])
		for i=1,#keys,5000 do
			redis.call('del', unpack(keys, i, math.min(i+4999, #keys)))
		end
	return keys`)
	if err := script.Eval(context.Background(), client, []string{}, []string{c.prefix + "*"}).Err(); err != nil {
		log.Error().Err(err).Str("prefix", c.prefix).Msg("failed to flush cache")
		return err
	}
	return nil
}

func (c *Set[T]) stats() SetStats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	return SetStats{
		Name:   c.name,
		Hits:   hits,
		Misses: misses,
		Items:  c.memory.ItemCount(),
	}
}
