package meta

import (
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fibercache "github.com/gofiber/fiber/v2/middleware/cache"
	"go.uber.org/fx"

	modelcache "github.com/riftstats/backend-next/internal/model/cache"
	"github.com/riftstats/backend-next/internal/pkg/bininfo"
	"github.com/riftstats/backend-next/internal/pkg/cache"
	"github.com/riftstats/backend-next/internal/pkg/cachectrl"
	"github.com/riftstats/backend-next/internal/pkg/fiberstore"
	"github.com/riftstats/backend-next/internal/server/svr"
	"github.com/riftstats/backend-next/internal/service"
)

type MetaController struct {
	fx.In

	HealthService *service.Health
	Redis         *redis.Client
}

func RegisterMeta(v1 *svr.V1, c MetaController) {
	v1.Get("/bininfo", c.BinInfo)

	v1.Get("/health", fibercache.New(fibercache.Config{
		// cache it for a second to mitigate potential DDoS
		Expiration: time.Second,
		Storage:    fiberstore.NewRedis(c.Redis, "fibercache"),
	}), c.Health)

	v1.Get("/cache/stats", c.CacheStats)

	v1.Get("/last-updated", c.LastUpdated)
}

func (c *MetaController) BinInfo(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"version": bininfo.Version,
		"build":   bininfo.BuildTime,
	})
}

func (c *MetaController) Health(ctx *fiber.Ctx) error {
	if err := c.HealthService.Ping(ctx.UserContext()); err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"status": "ok",
	})
}

// CacheStats exposes per-cache hit/miss counters. Read-only diagnostics.
func (c *MetaController) CacheStats(ctx *fiber.Ctx) error {
	stats := cache.Stats()
	out := make([]fiber.Map, 0, len(stats))
	for _, s := range stats {
		out = append(out, fiber.Map{
			"name":    s.Name,
			"hits":    s.Hits,
			"misses":  s.Misses,
			"items":   s.Items,
			"hitRate": s.HitRate(),
		})
	}
	return ctx.JSON(out)
}

// LastUpdated reports when the calc worker last completed a baseline batch.
func (c *MetaController) LastUpdated(ctx *fiber.Ctx) error {
	var lastModified time.Time
	if err := modelcache.LastModifiedTime.Get("[baselines]", &lastModified); err != nil {
		lastModified = time.Unix(0, 0)
	}

	cachectrl.OptInCustom(ctx, lastModified, time.Minute)
	return ctx.JSON(fiber.Map{
		"baselines": lastModified,
	})
}
