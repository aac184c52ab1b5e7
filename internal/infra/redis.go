package infra

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/riftstats/backend-next/internal/app/appconfig"
)

func Redis(conf *appconfig.Config) (*redis.Client, error) {
	u, err := redis.ParseURL(conf.RedisURL)
	if err != nil {
		log.Error().Err(err).Msg("infra: redis: failed to parse redis url")
		return nil, err
	}

	// Open a Redis Client
	client := redis.NewClient(u)

	// check redis connection, tolerating a slow container start
	err = retry.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return client.Ping(ctx).Err()
	}, retry.Attempts(3), retry.Delay(time.Second))
	if err != nil {
		log.Error().Err(err).Msg("infra: redis: failed to ping database")
		return nil, err
	}

	return client, nil
}
