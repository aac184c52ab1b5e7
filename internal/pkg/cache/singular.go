package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Singular caches exactly one value, in-process only. Used for values that are
// cheap enough to recompute per instance but expensive enough to not recompute
// per request.
type Singular[T any] struct {
	// m guards MutexGetSet against concurrent recomputation
	m sync.Mutex

	key string

	c *gocache.Cache
}

func NewSingular[T any](key string) *Singular[T] {
	return &Singular[T]{
		key: key,
		c:   gocache.New(gocache.NoExpiration, time.Minute*10),
	}
}

func (c *Singular[T]) Get(dest *T) error {
	result, ok := c.c.Get(c.key)
	if !ok {
		return ErrNotFound
	}
	*dest = result.(T)
	return nil
}

func (c *Singular[T]) Set(value T, expire time.Duration) error {
	c.c.Set(c.key, value, expire)
	return nil
}

// MutexGetSet gets the value and writes it to dest, or if absent, executes
// valueFunc serially, caches the result and writes it to dest.
func (c *Singular[T]) MutexGetSet(dest *T, valueFunc func() (T, error), expire time.Duration) error {
	if err := c.Get(dest); err == nil {
		return nil
	}
	// onwards, cache key does not exist

	return c.slowMutexGetSet(dest, valueFunc, expire)
}

func (c *Singular[T]) slowMutexGetSet(dest *T, valueFunc func() (T, error), expire time.Duration) error {
	c.m.Lock()
	defer c.m.Unlock()
	if err := c.Get(dest); err == nil {
		return nil
	}

	value, err := valueFunc()
	if err != nil {
		log.Error().Err(err).Str("key", c.key).Msg("failed to get value from valueFunc() in MutexGetSet")
		return err
	}

	if err := c.Set(value, expire); err != nil {
		log.Error().Err(err).Str("key", c.key).Msg("failed to set value to cache in MutexGetSet")
		return err
	}

	*dest = value
	return nil
}

func (c *Singular[T]) Delete() error {
	c.c.Flush()
	return nil
}
