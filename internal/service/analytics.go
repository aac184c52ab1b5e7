package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"
	"gopkg.in/guregu/null.v3"

	"github.com/riftstats/backend-next/internal/app/appconfig"
	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
	modelcache "github.com/riftstats/backend-next/internal/model/cache"
	"github.com/riftstats/backend-next/internal/pkg/async"
	"github.com/riftstats/backend-next/internal/pkg/cache"
	"github.com/riftstats/backend-next/internal/pkg/observability"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
	"github.com/riftstats/backend-next/internal/repo"
)

const analyticsCacheExpire = 30 * time.Minute

// observeAnalysisDuration times one cache-miss pipeline run.
func observeAnalysisDuration(operation string) func() {
	start := time.Now()
	return func() {
		observability.AnalysisDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// Analytics is the historical analytics pipeline: player and champion
// performance bundles, rolling trend windows and multi-entity comparisons.
type Analytics struct {
	MatchRepo       MatchSource
	BaselineService *Baseline
	StatService     *Stat

	MinSampleSize int

	Clock func() time.Time
}

func NewAnalytics(conf *appconfig.Config, matchRepo *repo.Match, baselineService *Baseline, statService *Stat) *Analytics {
	return &Analytics{
		MatchRepo:       matchRepo,
		BaselineService: baselineService,
		StatService:     statService,
		MinSampleSize:   conf.MinSampleSize,
		Clock:           time.Now,
	}
}

// AnalyzePlayerPerformance aggregates the player's filtered history into
// overall metrics, per-role and per-champion slices, deltas against the
// overall baseline and a chronological trend. Thin samples are flagged low
// confidence rather than rejected; only an empty history is an error.
func (s *Analytics) AnalyzePlayerPerformance(ctx context.Context, playerId string, filter *model.MatchFilter) (*model.PlayerAnalytics, error) {
	key := playerId + "|" + cache.Key("playerAnalytics", 1, filterCacheParams(filter))

	var analytics model.PlayerAnalytics
	_, err := modelcache.PlayerAnalytics.MutexGetSet(key, &analytics, func() (model.PlayerAnalytics, error) {
		calculated, err := s.calcPlayerAnalytics(ctx, playerId, filter)
		if err != nil {
			return model.PlayerAnalytics{}, err
		}
		return *calculated, nil
	}, analyticsCacheExpire)
	if err != nil {
		return nil, err
	}
	return &analytics, nil
}

func (s *Analytics) calcPlayerAnalytics(ctx context.Context, playerId string, filter *model.MatchFilter) (*model.PlayerAnalytics, error) {
	defer observeAnalysisDuration("player")()

	records, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, rserr.NewInsufficientData(1, 0)
	}

	overall := aggregateMetrics(records)

	analytics := &model.PlayerAnalytics{
		PlayerID:      playerId,
		Overall:       overall,
		ByRole:        make(map[string]model.PerformanceMetrics),
		ByChampion:    make(map[string]model.PerformanceMetrics),
		SampleSize:    len(records),
		LowConfidence: len(records) < s.MinSampleSize,
		ComputedAt:    s.Clock(),
	}
	if filter != nil {
		analytics.Filter = *filter
	}

	for role, bucket := range lo.GroupBy(records, func(r *model.MatchRecord) string { return r.Role }) {
		analytics.ByRole[role] = aggregateMetrics(bucket)
	}
	for championId, bucket := range lo.GroupBy(records, func(r *model.MatchRecord) string { return r.ChampionID }) {
		analytics.ByChampion[championId] = aggregateMetrics(bucket)
	}

	deltas, err := s.BaselineService.PerformanceDeltas(ctx, playerId, model.BaselineContext{Kind: constant.ContextOverall}, overall)
	if err == nil {
		analytics.Deltas = deltas
	} else if !rserr.IsInsufficientData(err) {
		return nil, err
	}

	series := chronologicalSeries(records, model.MetricKDA)
	if trend, err := s.StatService.TrendAnalysis(series); err == nil {
		analytics.Trend = *trend
	}

	return analytics, nil
}

// AnalyzeChampionPerformance is the champion/role slice of the pipeline, with
// deltas against the champion-context baseline.
func (s *Analytics) AnalyzeChampionPerformance(ctx context.Context, playerId, championId string, role null.String) (*model.ChampionAnalytics, error) {
	if championId == "" {
		return nil, rserr.ErrInvalidReq.Msg("champion analytics requires a champion id")
	}
	if role.Valid && !constant.ValidRole(role.String) {
		return nil, rserr.ErrInvalidReq.Msg("invalid role: %s", role.String)
	}

	key := playerId + "|" + championId + "|" + role.ValueOrZero()

	var analytics model.ChampionAnalytics
	_, err := modelcache.ChampionAnalytics.MutexGetSet(key, &analytics, func() (model.ChampionAnalytics, error) {
		calculated, err := s.calcChampionAnalytics(ctx, playerId, championId, role)
		if err != nil {
			return model.ChampionAnalytics{}, err
		}
		return *calculated, nil
	}, analyticsCacheExpire)
	if err != nil {
		return nil, err
	}
	return &analytics, nil
}

func (s *Analytics) calcChampionAnalytics(ctx context.Context, playerId, championId string, role null.String) (*model.ChampionAnalytics, error) {
	defer observeAnalysisDuration("champion")()

	filter := &model.MatchFilter{ChampionID: null.StringFrom(championId), Role: role}
	records, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, rserr.NewInsufficientData(1, 0)
	}

	metrics := aggregateMetrics(records)
	analytics := &model.ChampionAnalytics{
		PlayerID:      playerId,
		ChampionID:    championId,
		Role:          role.ValueOrZero(),
		Metrics:       metrics,
		SampleSize:    len(records),
		LowConfidence: len(records) < s.MinSampleSize,
	}

	wins := lo.Map(records, func(r *model.MatchRecord, _ int) float64 {
		if r.Win {
			return 1
		}
		return 0
	})
	if interval, err := s.StatService.ConfidenceInterval(wins, s.BaselineService.ConfidenceLevel); err == nil {
		analytics.WinRateInterval = *interval
	}

	bctx := model.BaselineContext{Kind: constant.ContextChampion, ChampionID: null.StringFrom(championId)}
	deltas, err := s.BaselineService.PerformanceDeltas(ctx, playerId, bctx, metrics)
	if err == nil {
		analytics.Deltas = deltas
	} else if !rserr.IsInsufficientData(err) {
		return nil, err
	}

	return analytics, nil
}

// CalculatePerformanceTrends buckets the player's history into consecutive
// windows of windowDays and fits a trend over the per-window values of the
// given metric. Fewer than three populated windows yields a low-confidence
// result with no fitted analysis.
func (s *Analytics) CalculatePerformanceTrends(ctx context.Context, playerId, metric string, windowDays int) (*model.PerformanceTrends, error) {
	if !lo.Contains(model.MetricNames, metric) {
		return nil, rserr.ErrInvalidReq.Msg("unknown metric: %s", metric)
	}
	if windowDays <= 0 {
		windowDays = int(constant.DefaultTrendWindow.Hours() / 24)
	}

	key := playerId + "|" + metric + "|" + strconv.Itoa(windowDays)

	var trends model.PerformanceTrends
	_, err := modelcache.PerformanceTrends.MutexGetSet(key, &trends, func() (model.PerformanceTrends, error) {
		calculated, err := s.calcPerformanceTrends(ctx, playerId, metric, windowDays)
		if err != nil {
			return model.PerformanceTrends{}, err
		}
		return *calculated, nil
	}, analyticsCacheExpire)
	if err != nil {
		return nil, err
	}
	return &trends, nil
}

func (s *Analytics) calcPerformanceTrends(ctx context.Context, playerId, metric string, windowDays int) (*model.PerformanceTrends, error) {
	defer observeAnalysisDuration("trends")()

	records, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, rserr.NewInsufficientData(1, 0)
	}

	chronological := append([]*model.MatchRecord(nil), records...)
	sort.Slice(chronological, func(i, j int) bool {
		return chronological[i].PlayedAt.Before(chronological[j].PlayedAt)
	})

	width := time.Duration(windowDays) * 24 * time.Hour
	start := chronological[0].PlayedAt

	buckets := make(map[int][]*model.MatchRecord)
	maxIdx := 0
	for _, r := range chronological {
		idx := int(r.PlayedAt.Sub(start) / width)
		buckets[idx] = append(buckets[idx], r)
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	trends := &model.PerformanceTrends{
		PlayerID:   playerId,
		Metric:     metric,
		WindowDays: windowDays,
		SampleSize: len(records),
	}

	series := make([]float64, 0, maxIdx+1)
	for idx := 0; idx <= maxIdx; idx++ {
		bucket, ok := buckets[idx]
		if !ok {
			// empty windows carry no signal and are skipped
			continue
		}
		metrics := aggregateMetrics(bucket)
		trends.Windows = append(trends.Windows, model.TrendWindow{
			Start:   start.Add(time.Duration(idx) * width),
			End:     start.Add(time.Duration(idx+1) * width),
			Metrics: metrics,
		})
		series = append(series, metrics.Metric(metric))
	}

	if analysis, err := s.StatService.TrendAnalysis(series); err == nil {
		trends.Analysis = *analysis
	} else {
		trends.LowConfidence = true
	}
	if len(records) < s.MinSampleSize {
		trends.LowConfidence = true
	}
	return trends, nil
}

// CompareEntities ranks players on one metric over their filtered histories.
// Players without any matching history are omitted; a comparison needs at
// least two players with data. Pairwise significance is tested wherever both
// samples allow it.
func (s *Analytics) CompareEntities(ctx context.Context, playerIds []string, metric string, filter *model.MatchFilter) (*model.EntityComparison, error) {
	if !lo.Contains(model.MetricNames, metric) {
		return nil, rserr.ErrInvalidReq.Msg("unknown metric: %s", metric)
	}
	if len(playerIds) < 2 {
		return nil, rserr.ErrInvalidReq.Msg("comparison requires at least two players, got %d", len(playerIds))
	}
	defer observeAnalysisDuration("compare")()

	type entitySample struct {
		id     string
		series []float64
	}

	// per-player history scans are independent; fetch them concurrently
	fetched, err := async.MapCtx(ctx, lo.Uniq(playerIds), 4, func(ctx context.Context, playerId string) (entitySample, error) {
		records, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, filter)
		if err != nil {
			return entitySample{}, err
		}
		return entitySample{
			id:     playerId,
			series: chronologicalSeries(records, metric),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	samples := lo.Filter(fetched, func(e entitySample, _ int) bool {
		return len(e.series) > 0
	})
	if len(samples) < 2 {
		return nil, rserr.NewInsufficientData(2, len(samples))
	}

	values := lo.Map(samples, func(e entitySample, _ int) float64 {
		return lo.Sum(e.series) / float64(len(e.series))
	})

	comparison := &model.EntityComparison{Metric: metric}
	for i, e := range samples {
		comparison.Entries = append(comparison.Entries, model.ComparisonEntry{
			ID:         e.id,
			Value:      values[i],
			Percentile: s.StatService.PercentileRank(values, values[i]),
			SampleSize: len(e.series),
		})
	}
	sort.SliceStable(comparison.Entries, func(i, j int) bool {
		return comparison.Entries[i].Value > comparison.Entries[j].Value
	})
	for i := range comparison.Entries {
		comparison.Entries[i].Rank = i + 1
	}

	for i := 0; i < len(samples); i++ {
		for j := i + 1; j < len(samples); j++ {
			test, err := s.StatService.SignificanceTest(samples[i].series, samples[j].series)
			if err != nil {
				// one of the samples is too thin to test; rank-only entry
				continue
			}
			comparison.Pairwise = append(comparison.Pairwise, model.PairwiseSignificance{
				A:    samples[i].id,
				B:    samples[j].id,
				Test: *test,
			})
		}
	}

	return comparison, nil
}

// aggregateMetrics is the unweighted mean of per-match metrics.
func aggregateMetrics(records []*model.MatchRecord) model.PerformanceMetrics {
	metrics := lo.Map(records, func(r *model.MatchRecord, _ int) model.PerformanceMetrics {
		return model.MetricsFromMatch(r)
	})
	weights := make([]float64, len(metrics))
	for i := range weights {
		weights[i] = 1
	}
	return model.WeightedAverageMetrics(metrics, weights)
}

// chronologicalSeries extracts the per-match metric values oldest first.
func chronologicalSeries(records []*model.MatchRecord, metric string) []float64 {
	chronological := append([]*model.MatchRecord(nil), records...)
	sort.Slice(chronological, func(i, j int) bool {
		return chronological[i].PlayedAt.Before(chronological[j].PlayedAt)
	})
	return lo.Map(chronological, func(r *model.MatchRecord, _ int) float64 {
		return model.MetricsFromMatch(r).Metric(metric)
	})
}

func filterCacheParams(filter *model.MatchFilter) map[string]string {
	params := map[string]string{}
	if filter == nil {
		return params
	}
	if filter.ChampionID.Valid {
		params["championId"] = filter.ChampionID.String
	}
	if filter.Role.Valid {
		params["role"] = filter.Role.String
	}
	if filter.Queue.Valid {
		params["queue"] = filter.Queue.String
	}
	if filter.From.Valid {
		params["from"] = strconv.FormatInt(filter.From.Time.Unix(), 10)
	}
	if filter.To.Valid {
		params["to"] = strconv.FormatInt(filter.To.Time.Unix(), 10)
	}
	if filter.Limit > 0 {
		params["limit"] = strconv.Itoa(filter.Limit)
	}
	return params
}
