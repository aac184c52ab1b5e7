package v1

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"

	"github.com/riftstats/backend-next/internal/model"
	"github.com/riftstats/backend-next/internal/server/svr"
	"github.com/riftstats/backend-next/internal/service"
	"github.com/riftstats/backend-next/internal/util/rekuest"
)

type CompositionController struct {
	fx.In

	CompositionService *service.Composition
}

func RegisterComposition(v1 *svr.V1, c CompositionController) {
	v1.Post("/compositions/analyze", c.AnalyzePerformance)
	v1.Post("/compositions/similar", c.FindSimilar)
	v1.Post("/compositions/synergy", c.SynergyEffects)
	v1.Post("/compositions/optimal", c.IdentifyOptimal)
}

type CompositionRequest struct {
	Assignments []model.Assignment `json:"assignments" validate:"required,min=1,dive"`
}

func (r CompositionRequest) composition() *model.TeamComposition {
	return &model.TeamComposition{Assignments: r.Assignments}
}

func (c *CompositionController) AnalyzePerformance(ctx *fiber.Ctx) error {
	var request CompositionRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}

	performance, err := c.CompositionService.AnalyzeCompositionPerformance(ctx.UserContext(), request.composition())
	if err != nil {
		return err
	}
	return ctx.JSON(performance)
}

type SimilarCompositionsRequest struct {
	CompositionRequest
	Threshold float64 `json:"threshold" validate:"omitempty,gt=0,lte=1"`
}

func (c *CompositionController) FindSimilar(ctx *fiber.Ctx) error {
	var request SimilarCompositionsRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}

	similar, err := c.CompositionService.FindSimilarCompositions(ctx.UserContext(), request.composition(), request.Threshold)
	if err != nil {
		return err
	}
	return ctx.JSON(similar)
}

func (c *CompositionController) SynergyEffects(ctx *fiber.Ctx) error {
	var request CompositionRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}

	effects, err := c.CompositionService.SynergyEffects(ctx.UserContext(), request.composition())
	if err != nil {
		return err
	}
	return ctx.JSON(effects)
}

type OptimalCompositionsRequest struct {
	PlayerPool  []string                      `json:"playerPool" validate:"required,min=1"`
	Constraints *model.CompositionConstraints `json:"constraints"`
}

func (c *CompositionController) IdentifyOptimal(ctx *fiber.Ctx) error {
	var request OptimalCompositionsRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}

	scored, err := c.CompositionService.IdentifyOptimalCompositions(ctx.UserContext(), request.PlayerPool, request.Constraints)
	if err != nil {
		return err
	}
	return ctx.JSON(scored)
}
