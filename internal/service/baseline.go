package service

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gopkg.in/guregu/null.v3"

	"github.com/riftstats/backend-next/internal/app/appconfig"
	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
	modelcache "github.com/riftstats/backend-next/internal/model/cache"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
	"github.com/riftstats/backend-next/internal/repo"
)

const baselineCacheExpire = time.Hour

// Baseline owns player baseline computation: temporally-weighted context
// averages, shrinkage for thin samples, and the persisted snapshots the calc
// worker writes.
type Baseline struct {
	MatchRepo   MatchSource
	ElementRepo BaselineStore
	StatService *Stat

	// DecayRate is the per-day exponential decay applied to match weights.
	DecayRate       float64
	MinSampleSize   int
	ConfidenceLevel float64

	// Clock pins decay weighting in tests.
	Clock func() time.Time
}

func NewBaseline(conf *appconfig.Config, matchRepo *repo.Match, elementRepo *repo.BaselineElement, statService *Stat) *Baseline {
	return &Baseline{
		MatchRepo:       matchRepo,
		ElementRepo:     elementRepo,
		StatService:     statService,
		DecayRate:       conf.BaselineDecayRate,
		MinSampleSize:   conf.MinSampleSize,
		ConfidenceLevel: conf.ConfidenceLevel,
		Clock:           time.Now,
	}
}

// PlayerBaseline returns the player's baseline for the given context, cached.
// A context with no matches falls back to the persisted snapshot; when
// neither exists the result is an insufficient-data error.
func (s *Baseline) PlayerBaseline(ctx context.Context, playerId string, bctx model.BaselineContext) (*model.PlayerBaseline, error) {
	if err := validateBaselineContext(bctx); err != nil {
		return nil, err
	}

	key := playerId + "|" + bctx.Key()
	var baseline model.PlayerBaseline
	_, err := modelcache.PlayerBaseline.MutexGetSet(key, &baseline, func() (model.PlayerBaseline, error) {
		calculated, err := s.calcPlayerBaseline(ctx, playerId, bctx)
		if err != nil {
			return model.PlayerBaseline{}, err
		}
		return *calculated, nil
	}, baselineCacheExpire)
	if err != nil {
		return nil, err
	}
	return &baseline, nil
}

// PerformanceDeltas compares observed metrics against the player's baseline
// in the given context, one delta per metric with percentile rank and a
// deviation significance when the context sample allows one.
func (s *Baseline) PerformanceDeltas(ctx context.Context, playerId string, bctx model.BaselineContext, actual model.PerformanceMetrics) ([]model.PerformanceDelta, error) {
	records, err := s.contextMatches(ctx, playerId, bctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, rserr.NewInsufficientData(1, 0)
	}

	baseline, err := s.PlayerBaseline(ctx, playerId, bctx)
	if err != nil {
		return nil, err
	}

	perMatch := lo.Map(records, func(r *model.MatchRecord, _ int) model.PerformanceMetrics {
		return model.MetricsFromMatch(r)
	})

	deltas := make([]model.PerformanceDelta, 0, len(model.MetricNames))
	for _, name := range model.MetricNames {
		series := lo.Map(perMatch, func(m model.PerformanceMetrics, _ int) float64 {
			return m.Metric(name)
		})

		act := actual.Metric(name)
		base := baseline.Metrics.Metric(name)
		delta := model.PerformanceDelta{
			Metric:   name,
			Actual:   act,
			Baseline: base,
			Absolute: act - base,
		}
		if base != 0 {
			delta.Percent = (act - base) / math.Abs(base) * 100
		}
		delta.Percentile = s.StatService.PercentileRank(series, act)

		if len(series) >= 2 {
			mean, sd := meanStdDev(series)
			switch {
			case sd > 0:
				z := (act - mean) / sd
				delta.Significance = 2 * (1 - normalCDF(math.Abs(z)))
			case act == mean:
				delta.Significance = 1
			default:
				delta.Significance = 0
			}
			delta.Significant = delta.Significance < s.StatService.Alpha && len(series) >= s.MinSampleSize
		}

		deltas = append(deltas, delta)
	}
	return deltas, nil
}

// RecomputePlayer rebuilds every baseline bucket of the player from full
// match history: the overall context plus one context per role and champion
// played. Recomputed baselines are written through the cache and returned as
// persistable snapshot elements.
func (s *Baseline) RecomputePlayer(ctx context.Context, playerId string) ([]*model.BaselineElement, error) {
	records, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []*model.BaselineElement{}, nil
	}

	overall := s.weightedBaseline(playerId, model.BaselineContext{Kind: constant.ContextOverall}, records)
	s.applyShrinkage(overall, nil)

	baselines := []*model.PlayerBaseline{overall}

	byRole := lo.GroupBy(records, func(r *model.MatchRecord) string { return r.Role })
	for role, bucket := range byRole {
		bctx := model.BaselineContext{Kind: constant.ContextRole, Role: null.StringFrom(role)}
		b := s.weightedBaseline(playerId, bctx, bucket)
		s.applyShrinkage(b, overall)
		baselines = append(baselines, b)
	}

	byChampion := lo.GroupBy(records, func(r *model.MatchRecord) string { return r.ChampionID })
	for championId, bucket := range byChampion {
		bctx := model.BaselineContext{Kind: constant.ContextChampion, ChampionID: null.StringFrom(championId)}
		b := s.weightedBaseline(playerId, bctx, bucket)
		s.applyShrinkage(b, overall)
		baselines = append(baselines, b)
	}

	elements := make([]*model.BaselineElement, 0, len(baselines))
	for _, b := range baselines {
		if err := modelcache.PlayerBaseline.Set(playerId+"|"+b.Context.Key(), *b, baselineCacheExpire); err != nil {
			log.Warn().Err(err).Str("playerId", playerId).Msg("failed to cache recomputed baseline")
		}
		elements = append(elements, model.NewBaselineElement(b))
	}
	return elements, nil
}

// UpdateBaselines refreshes the player's baselines after new matches arrive:
// it drops every cached result scoped to the player, recomputes all baseline
// buckets and replaces the persisted snapshots in one transaction.
func (s *Baseline) UpdateBaselines(ctx context.Context, playerId string) error {
	if err := modelcache.InvalidatePlayer(playerId); err != nil {
		log.Warn().Err(err).Str("playerId", playerId).Msg("failed to invalidate player caches")
	}

	elements, err := s.RecomputePlayer(ctx, playerId)
	if err != nil {
		return err
	}
	return s.ElementRepo.BatchSaveByPlayer(ctx, playerId, elements)
}

func (s *Baseline) calcPlayerBaseline(ctx context.Context, playerId string, bctx model.BaselineContext) (*model.PlayerBaseline, error) {
	records, err := s.contextMatches(ctx, playerId, bctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		element, err := s.ElementRepo.GetByPlayerAndContext(ctx, playerId, bctx.Key())
		if err == nil && element != nil {
			return s.baselineFromElement(playerId, bctx, element), nil
		}
		return nil, rserr.NewInsufficientData(1, 0)
	}

	baseline := s.weightedBaseline(playerId, bctx, records)

	var overall *model.PlayerBaseline
	if baseline.SampleSize < s.MinSampleSize && bctx.Kind != constant.ContextOverall {
		all, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
		if err == nil && len(all) > 0 {
			overall = s.weightedBaseline(playerId, model.BaselineContext{Kind: constant.ContextOverall}, all)
		}
	}
	s.applyShrinkage(baseline, overall)
	return baseline, nil
}

// weightedBaseline aggregates the records under exponential temporal decay
// w = exp(-DecayRate * daysAgo). Effective sample size is the Kish
// equivalent count (sum w)^2 / (sum w^2), always at most the raw count.
func (s *Baseline) weightedBaseline(playerId string, bctx model.BaselineContext, records []*model.MatchRecord) *model.PlayerBaseline {
	now := s.Clock()

	metrics := make([]model.PerformanceMetrics, len(records))
	weights := make([]float64, len(records))
	wins := make([]float64, len(records))
	var sumW, sumW2 float64
	for i, r := range records {
		metrics[i] = model.MetricsFromMatch(r)
		wins[i] = metrics[i].WinRate

		days := now.Sub(r.PlayedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		w := math.Exp(-s.DecayRate * days)
		weights[i] = w
		sumW += w
		sumW2 += w * w
	}

	effective := 0.0
	if sumW2 > 0 {
		effective = sumW * sumW / sumW2
	}

	baseline := &model.PlayerBaseline{
		PlayerID:            playerId,
		Context:             bctx,
		Metrics:             model.WeightedAverageMetrics(metrics, weights),
		SampleSize:          len(records),
		EffectiveSampleSize: effective,
		ComputedAt:          now,
	}

	if interval, err := s.StatService.ConfidenceInterval(wins, s.ConfidenceLevel); err == nil {
		baseline.WinRateInterval = *interval
	}
	return baseline
}

// applyShrinkage flags thin samples and, for non-overall contexts, blends
// the baseline toward the overall one in proportion to how far the sample
// falls short of the configured minimum.
func (s *Baseline) applyShrinkage(b *model.PlayerBaseline, overall *model.PlayerBaseline) {
	b.LowConfidence = b.SampleSize < s.MinSampleSize
	if !b.LowConfidence || overall == nil || b.Context.Kind == constant.ContextOverall {
		return
	}

	lambda := float64(b.SampleSize) / float64(s.MinSampleSize)
	b.Metrics = blendMetrics(b.Metrics, overall.Metrics, lambda)
}

func (s *Baseline) baselineFromElement(playerId string, bctx model.BaselineContext, element *model.BaselineElement) *model.PlayerBaseline {
	return &model.PlayerBaseline{
		PlayerID:            playerId,
		Context:             bctx,
		Metrics:             element.Metrics(),
		SampleSize:          element.SampleSize,
		EffectiveSampleSize: element.EffectiveSampleSize,
		LowConfidence:       element.SampleSize < s.MinSampleSize,
		ComputedAt:          element.ComputedAt,
	}
}

func (s *Baseline) contextMatches(ctx context.Context, playerId string, bctx model.BaselineContext) ([]*model.MatchRecord, error) {
	switch bctx.Kind {
	case constant.ContextRole:
		return s.MatchRepo.GetMatchesByPlayer(ctx, playerId, &model.MatchFilter{Role: bctx.Role})
	case constant.ContextChampion:
		return s.MatchRepo.GetMatchesByPlayer(ctx, playerId, &model.MatchFilter{ChampionID: bctx.ChampionID})
	case constant.ContextTeam:
		ids := lo.Uniq(append([]string{playerId}, bctx.TeamPlayerIDs...))
		records, err := s.MatchRepo.GetMatchesSharedByPlayers(ctx, ids, time.Time{})
		if err != nil {
			return nil, err
		}
		// only the player's own rows feed their baseline
		return lo.Filter(records, func(r *model.MatchRecord, _ int) bool {
			return r.PlayerID == playerId
		}), nil
	default:
		return s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
	}
}

// blendMetrics interpolates fieldwise between a (weight lambda) and b.
func blendMetrics(a, b model.PerformanceMetrics, lambda float64) model.PerformanceMetrics {
	if lambda < 0 {
		lambda = 0
	} else if lambda > 1 {
		lambda = 1
	}
	mu := 1 - lambda
	return model.PerformanceMetrics{
		WinRate:           lambda*a.WinRate + mu*b.WinRate,
		KDA:               lambda*a.KDA + mu*b.KDA,
		CSPerMin:          lambda*a.CSPerMin + mu*b.CSPerMin,
		VisionPerMin:      lambda*a.VisionPerMin + mu*b.VisionPerMin,
		DamagePerMin:      lambda*a.DamagePerMin + mu*b.DamagePerMin,
		GoldPerMin:        lambda*a.GoldPerMin + mu*b.GoldPerMin,
		KillParticipation: lambda*a.KillParticipation + mu*b.KillParticipation,
		Games:             a.Games,
	}
}

func validateBaselineContext(bctx model.BaselineContext) error {
	switch bctx.Kind {
	case constant.ContextOverall:
		return nil
	case constant.ContextRole:
		if !bctx.Role.Valid || !constant.ValidRole(bctx.Role.String) {
			return rserr.ErrInvalidReq.Msg("role context requires a valid role, got %s", bctx.Role.ValueOrZero())
		}
		return nil
	case constant.ContextChampion:
		if !bctx.ChampionID.Valid || bctx.ChampionID.String == "" {
			return rserr.ErrInvalidReq.Msg("champion context requires a champion id")
		}
		return nil
	case constant.ContextTeam:
		if len(bctx.TeamPlayerIDs) == 0 {
			return rserr.ErrInvalidReq.Msg("team context requires at least one teammate")
		}
		return nil
	}
	return rserr.ErrInvalidReq.Msg("unknown baseline context kind: %s", bctx.Kind)
}
