package meta

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"

	"github.com/riftstats/backend-next/internal/app/appconfig"
	modelcache "github.com/riftstats/backend-next/internal/model/cache"
	"github.com/riftstats/backend-next/internal/pkg/cachectrl"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
	"github.com/riftstats/backend-next/internal/server/svr"
	"github.com/riftstats/backend-next/internal/service"
	"github.com/riftstats/backend-next/internal/util/rekuest"
)

type AdminController struct {
	fx.In

	Config          *appconfig.Config
	BaselineService *service.Baseline
}

func RegisterAdmin(admin *svr.Admin, c AdminController) {
	admin.Use(c.requireAdminKey)

	admin.Post("/purge", c.PurgeCache)
	admin.Get("/refresh/baselines/:playerId", c.RefreshPlayerBaselines)
}

func (c *AdminController) requireAdminKey(ctx *fiber.Ctx) error {
	cachectrl.OptOut(ctx)

	if c.Config.AdminKey == "" {
		return rserr.ErrNotFound
	}
	key := ctx.Get(fiber.HeaderAuthorization)
	if subtle.ConstantTimeCompare([]byte(key), []byte("Bearer "+c.Config.AdminKey)) != 1 {
		return rserr.ErrInvalidReq.Msg("invalid admin key")
	}
	return ctx.Next()
}

type PurgeCacheRequest struct {
	// Name selects one registered cache; empty purges every cache.
	Name string `json:"name"`
}

func (c *AdminController) PurgeCache(ctx *fiber.Ctx) error {
	var request PurgeCacheRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}

	if request.Name == "" {
		if err := modelcache.FlushAll(); err != nil {
			return err
		}
	} else if err := modelcache.Flush(request.Name); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"status": "ok",
	})
}

func (c *AdminController) RefreshPlayerBaselines(ctx *fiber.Ctx) error {
	playerId := ctx.Params("playerId")
	if err := c.BaselineService.UpdateBaselines(ctx.UserContext(), playerId); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"status": "ok",
	})
}
