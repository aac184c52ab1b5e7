package v1

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"gopkg.in/guregu/null.v3"

	"github.com/riftstats/backend-next/internal/model"
	"github.com/riftstats/backend-next/internal/pkg/cachectrl"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
	"github.com/riftstats/backend-next/internal/server/svr"
	"github.com/riftstats/backend-next/internal/service"
	"github.com/riftstats/backend-next/internal/util/rekuest"
)

type AnalyticsController struct {
	fx.In

	AnalyticsService *service.Analytics
	BaselineService  *service.Baseline
}

func RegisterAnalytics(v1 *svr.V1, c AnalyticsController) {
	v1.Get("/players/:playerId/analytics", c.GetPlayerAnalytics)
	v1.Get("/players/:playerId/champions/:championId", c.GetChampionAnalytics)
	v1.Get("/players/:playerId/trends", c.GetPerformanceTrends)
	v1.Get("/players/:playerId/baseline", c.GetPlayerBaseline)
	v1.Post("/players/compare", c.CompareEntities)
}

func (c *AnalyticsController) GetPlayerAnalytics(ctx *fiber.Ctx) error {
	playerId := ctx.Params("playerId")

	var filter model.MatchFilter
	if err := rekuest.ValidQuery(ctx, &filter); err != nil {
		return err
	}

	analytics, err := c.AnalyticsService.AnalyzePlayerPerformance(ctx.UserContext(), playerId, &filter)
	if err != nil {
		return err
	}

	cachectrl.OptInCustom(ctx, time.Now(), 30*time.Minute)
	return ctx.JSON(analytics)
}

func (c *AnalyticsController) GetChampionAnalytics(ctx *fiber.Ctx) error {
	playerId := ctx.Params("playerId")
	championId := ctx.Params("championId")

	role := null.String{}
	if q := ctx.Query("role"); q != "" {
		role = null.StringFrom(q)
	}

	analytics, err := c.AnalyticsService.AnalyzeChampionPerformance(ctx.UserContext(), playerId, championId, role)
	if err != nil {
		return err
	}

	cachectrl.OptInCustom(ctx, time.Now(), 30*time.Minute)
	return ctx.JSON(analytics)
}

func (c *AnalyticsController) GetPerformanceTrends(ctx *fiber.Ctx) error {
	playerId := ctx.Params("playerId")
	metric := ctx.Query("metric", model.MetricWinRate)

	windowDays := 0
	if q := ctx.Query("windowDays"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed <= 0 {
			return rserr.ErrInvalidReq.Msg("windowDays must be a positive integer")
		}
		windowDays = parsed
	}

	trends, err := c.AnalyticsService.CalculatePerformanceTrends(ctx.UserContext(), playerId, metric, windowDays)
	if err != nil {
		return err
	}

	cachectrl.OptInCustom(ctx, time.Now(), 30*time.Minute)
	return ctx.JSON(trends)
}

func (c *AnalyticsController) GetPlayerBaseline(ctx *fiber.Ctx) error {
	playerId := ctx.Params("playerId")

	var request struct {
		Kind       string   `query:"kind" validate:"omitempty,caseinsensitiveoneof=overall role champion team"`
		Role       string   `query:"role" validate:"gamerole"`
		ChampionID string   `query:"championId"`
		Team       []string `query:"team"`
	}
	if err := rekuest.ValidQuery(ctx, &request); err != nil {
		return err
	}
	if request.Kind == "" {
		request.Kind = "overall"
	}

	bctx := model.BaselineContext{
		Kind:          request.Kind,
		TeamPlayerIDs: request.Team,
	}
	if request.Role != "" {
		bctx.Role = null.StringFrom(request.Role)
	}
	if request.ChampionID != "" {
		bctx.ChampionID = null.StringFrom(request.ChampionID)
	}

	baseline, err := c.BaselineService.PlayerBaseline(ctx.UserContext(), playerId, bctx)
	if err != nil {
		return err
	}

	cachectrl.OptIn(ctx, time.Now())
	return ctx.JSON(baseline)
}

type CompareRequest struct {
	PlayerIDs []string           `json:"playerIds" validate:"required,min=2"`
	Metric    string             `json:"metric" validate:"required,metricname"`
	Filter    *model.MatchFilter `json:"filter"`
}

func (c *AnalyticsController) CompareEntities(ctx *fiber.Ctx) error {
	var request CompareRequest
	if err := rekuest.ValidBody(ctx, &request); err != nil {
		return err
	}

	comparison, err := c.AnalyticsService.CompareEntities(ctx.UserContext(), request.PlayerIDs, request.Metric, request.Filter)
	if err != nil {
		return err
	}
	return ctx.JSON(comparison)
}
