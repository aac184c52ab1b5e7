package cache

import (
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when a key exists in neither tier.
var ErrNotFound = errors.New("cache: not found")

var (
	client *redis.Client
	mu     sync.RWMutex
)

// Populate installs the redis client backing the persistent tier. When it is
// never called (or called with nil), every Set operates memory-only: the
// persistent tier is an optimization, not a correctness requirement.
func Populate(c *redis.Client) {
	mu.Lock()
	defer mu.Unlock()
	client = c
}

func redisClient() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}
