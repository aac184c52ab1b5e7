package v1

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"

	"github.com/riftstats/backend-next/internal/model"
	"github.com/riftstats/backend-next/internal/server/svr"
	"github.com/riftstats/backend-next/internal/service"
	"github.com/riftstats/backend-next/internal/util/rekuest"
)

type RecommendController struct {
	fx.In

	RecommendService *service.Recommend
}

func RegisterRecommend(v1 *svr.V1, c RecommendController) {
	v1.Post("/recommendations", c.Recommend)
	v1.Post("/recommendations/score", c.ScoreCandidate)
}

type RecommendRequest struct {
	PlayerID string             `json:"playerId" validate:"required"`
	Role     string             `json:"role" validate:"required,gamerole"`
	Team     *model.TeamContext `json:"team"`
	Strategy string             `json:"strategy" validate:"strategy"`

	// Weights overrides the strategy's factor weights; re-normalized when
	// the sum drifts from one.
	Weights map[string]float64 `json:"weights"`
}

func (c *RecommendController) Recommend(ctx *fiber.Ctx) error {
	var request RecommendRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}

	result, err := c.RecommendService.Recommend(ctx.UserContext(), request.PlayerID, request.Role, request.Team, request.Strategy, request.Weights)
	if err != nil {
		return err
	}
	return ctx.JSON(result)
}

type ScoreCandidateRequest struct {
	PlayerID   string             `json:"playerId" validate:"required"`
	ChampionID string             `json:"championId" validate:"required"`
	Role       string             `json:"role" validate:"required,gamerole"`
	Team       *model.TeamContext `json:"team"`
}

func (c *RecommendController) ScoreCandidate(ctx *fiber.Ctx) error {
	var request ScoreCandidateRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}

	recommendation, err := c.RecommendService.ScoreCandidate(ctx.UserContext(), request.PlayerID, request.ChampionID, request.Role, request.Team, nil)
	if err != nil {
		return err
	}
	return ctx.JSON(recommendation)
}
