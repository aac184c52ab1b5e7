package fiberstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
)

// Redis backs fiber middleware storage with prefixed redis keys so cached
// responses are shared between instances behind the same balancer. The
// expiration passed by the middleware maps onto native redis TTLs.
type Redis struct {
	Client *redis.Client
	Prefix string
}

var _ fiber.Storage = &Redis{}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{
		Client: client,
		Prefix: prefix,
	}
}

func (r *Redis) key(key string) string {
	return r.Prefix + ":" + key
}

// Close implements fiber.Storage
func (r *Redis) Close() error {
	return r.Client.Close()
}

// Delete implements fiber.Storage
func (r *Redis) Delete(key string) error {
	return r.Client.Del(context.Background(), r.key(key)).Err()
}

// Get implements fiber.Storage
func (r *Redis) Get(key string) ([]byte, error) {
	b, err := r.Client.Get(context.Background(), r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return b, err
}

// Reset implements fiber.Storage
func (r *Redis) Reset() error {
	ctx := context.Background()
	iter := r.Client.Scan(ctx, 0, r.Prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Set implements fiber.Storage
func (r *Redis) Set(key string, val []byte, exp time.Duration) error {
	return r.Client.Set(context.Background(), r.key(key), val, exp).Err()
}
