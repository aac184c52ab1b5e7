package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gopkg.in/guregu/null.v3"

	"github.com/riftstats/backend-next/internal/app/appconfig"
	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
	modelcache "github.com/riftstats/backend-next/internal/model/cache"
	"github.com/riftstats/backend-next/internal/pkg/cache"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
	"github.com/riftstats/backend-next/internal/repo"
)

const (
	recommendationCacheExpire = 15 * time.Minute

	maxRecommendations = 5

	// weightSumTolerance is how far a weight vector may drift from summing to
	// one before it gets re-normalized.
	weightSumTolerance = 1e-9
)

// MetaSource supplies the external popularity/strength signal of an option
// in a role, in [0,1]. The engine never computes this internally.
type MetaSource interface {
	Popularity(ctx context.Context, optionId, role string) (float64, error)
}

// NoopMeta is the neutral meta signal used when no source is wired.
type NoopMeta struct{}

func (NoopMeta) Popularity(ctx context.Context, optionId, role string) (float64, error) {
	return 0.5, nil
}

// factorFunc scores one recommendation factor in [0,1] and reports the
// sample size behind it.
type factorFunc func(ctx context.Context, in factorInput) (float64, int)

type factorInput struct {
	playerId   string
	championId string
	role       string
	team       *model.TeamContext
}

type recommendationFactor struct {
	name  string
	score factorFunc
}

// Recommend combines individual performance, synergy, recent form, meta
// signal and confidence into ranked champion recommendations. Strategy
// presets only swap the weight vector; the factor pipeline never changes.
type Recommend struct {
	MatchRepo       MatchSource
	BaselineService *Baseline
	StatService     *Stat
	MetaService     MetaSource

	BaseWeights     map[string]float64
	ConfidenceFloor float64
	RecentFormDays  int
	MinSampleSize   int

	Clock func() time.Time

	factors []recommendationFactor
}

func NewRecommend(conf *appconfig.Config, matchRepo *repo.Match, baselineService *Baseline, statService *Stat, metaService MetaSource) *Recommend {
	s := &Recommend{
		MatchRepo:       matchRepo,
		BaselineService: baselineService,
		StatService:     statService,
		MetaService:     metaService,
		BaseWeights:     map[string]float64(conf.RecommendWeights),
		ConfidenceFloor: conf.RecommendConfidenceFloor,
		RecentFormDays:  conf.RecentFormDays,
		MinSampleSize:   conf.MinSampleSize,
		Clock:           time.Now,
	}
	s.registerFactors()
	return s
}

func (s *Recommend) registerFactors() {
	s.factors = []recommendationFactor{
		{constant.FactorIndividual, s.individualFactor},
		{constant.FactorSynergy, s.synergyFactor},
		{constant.FactorRecentForm, s.recentFormFactor},
		{constant.FactorMeta, s.metaFactor},
		{constant.FactorConfidence, s.confidenceFactor},
	}
}

// Recommend scores every eligible champion for the player in the role and
// returns the top candidates ranked by composite score. When no candidate
// clears the confidence floor the result is empty and flagged, which is a
// normal outcome rather than an error.
func (s *Recommend) Recommend(ctx context.Context, playerId, role string, team *model.TeamContext, strategy string, overrides map[string]float64) (*model.RecommendationResult, error) {
	if !constant.ValidRole(role) {
		return nil, rserr.ErrInvalidReq.Msg("invalid role: %s", role)
	}
	if strategy == "" {
		strategy = constant.StrategyBalanced
	}

	weights, normalized, err := s.resolveWeights(strategy, overrides)
	if err != nil {
		return nil, err
	}

	key := playerId + "|" + cache.Key("recommend", 1, recommendCacheParams(role, team, strategy, overrides))
	var result model.RecommendationResult
	_, err = modelcache.Recommendations.MutexGetSet(key, &result, func() (model.RecommendationResult, error) {
		calculated, err := s.calcRecommendations(ctx, playerId, role, team, strategy, weights, normalized)
		if err != nil {
			return model.RecommendationResult{}, err
		}
		return *calculated, nil
	}, recommendationCacheExpire)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Recommend) calcRecommendations(ctx context.Context, playerId, role string, team *model.TeamContext, strategy string, weights map[string]float64, normalized bool) (*model.RecommendationResult, error) {
	result := &model.RecommendationResult{
		PlayerID:          playerId,
		Role:              role,
		Strategy:          strategy,
		Recommendations:   []model.Recommendation{},
		WeightsNormalized: normalized,
	}

	candidates, err := s.candidateChampions(ctx, playerId, role)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		result.Flagged = true
		result.Reason = "no candidate champions available for this player and role"
		return result, nil
	}

	for _, championId := range candidates {
		recommendation, err := s.ScoreCandidate(ctx, playerId, championId, role, team, weights)
		if err != nil {
			return nil, err
		}
		if recommendation.Confidence < s.ConfidenceFloor {
			continue
		}
		result.Recommendations = append(result.Recommendations, *recommendation)
	}

	if len(result.Recommendations) == 0 {
		result.Flagged = true
		result.Reason = fmt.Sprintf("no candidate met the minimum confidence floor of %.2f", s.ConfidenceFloor)
		return result, nil
	}

	sort.SliceStable(result.Recommendations, func(i, j int) bool {
		return result.Recommendations[i].Score > result.Recommendations[j].Score
	})
	if len(result.Recommendations) > maxRecommendations {
		result.Recommendations = result.Recommendations[:maxRecommendations]
	}
	return result, nil
}

// ScoreCandidate computes the composite score of one candidate under the
// given weights, with the per-factor breakdown and a generated justification.
func (s *Recommend) ScoreCandidate(ctx context.Context, playerId, championId, role string, team *model.TeamContext, weights map[string]float64) (*model.Recommendation, error) {
	if weights == nil {
		var err error
		weights, _, err = s.resolveWeights(constant.StrategyBalanced, nil)
		if err != nil {
			return nil, err
		}
	}

	in := factorInput{
		playerId:   playerId,
		championId: championId,
		role:       role,
		team:       team,
	}

	recommendation := &model.Recommendation{
		ChampionID: championId,
		Role:       role,
	}
	for _, factor := range s.factors {
		score, sampleSize := factor.score(ctx, in)
		weight := weights[factor.name]
		recommendation.Factors = append(recommendation.Factors, model.FactorScore{
			Name:     factor.name,
			Score:    score,
			Weight:   weight,
			Weighted: weight * score,
		})
		recommendation.Score += weight * score

		switch factor.name {
		case constant.FactorConfidence:
			recommendation.Confidence = score
		case constant.FactorIndividual:
			recommendation.SampleSize = sampleSize
		}
	}

	recommendation.Justification = justify(recommendation)
	return recommendation, nil
}

// resolveWeights layers explicit overrides on top of the strategy preset and
// re-normalizes when the result does not sum to one.
func (s *Recommend) resolveWeights(strategy string, overrides map[string]float64) (map[string]float64, bool, error) {
	weights, err := s.strategyWeights(strategy)
	if err != nil {
		return nil, false, err
	}
	for name, w := range overrides {
		if !lo.Contains(factorNames(), name) {
			return nil, false, rserr.ErrInvalidReq.Msg("unknown recommendation factor: %s", name)
		}
		if w < 0 {
			return nil, false, rserr.ErrInvalidReq.Msg("negative weight for factor %s", name)
		}
		weights[name] = w
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return nil, false, rserr.ErrInvalidReq.Msg("recommendation weights must have a positive sum")
	}
	if math.Abs(sum-1) <= weightSumTolerance {
		return weights, false, nil
	}

	log.Warn().Float64("sum", sum).Msg("recommendation weights do not sum to 1; normalizing")
	for name := range weights {
		weights[name] /= sum
	}
	return weights, true, nil
}

func (s *Recommend) strategyWeights(strategy string) (map[string]float64, error) {
	weights := make(map[string]float64, len(factorNames()))
	for _, name := range factorNames() {
		weights[name] = s.BaseWeights[name]
	}

	switch strategy {
	case constant.StrategyBalanced:
	case constant.StrategyConservative:
		// lean on proven individual performance and certainty
		weights[constant.FactorIndividual] += 0.10
		weights[constant.FactorConfidence] += 0.10
		weights[constant.FactorSynergy] -= 0.10
		weights[constant.FactorRecentForm] -= 0.10
	case constant.StrategyHighVariance:
		weights[constant.FactorRecentForm] += 0.10
		weights[constant.FactorSynergy] += 0.10
		weights[constant.FactorIndividual] -= 0.10
		weights[constant.FactorConfidence] -= 0.05
		weights[constant.FactorMeta] -= 0.05
	case constant.StrategyCounter:
		weights[constant.FactorMeta] += 0.15
		weights[constant.FactorIndividual] -= 0.10
		weights[constant.FactorConfidence] -= 0.05
	default:
		return nil, rserr.ErrInvalidReq.Msg("unknown strategy: %s", strategy)
	}

	for name, w := range weights {
		if w < 0 {
			weights[name] = 0
		}
	}
	return weights, nil
}

// individualFactor is 0.4 * champion win rate + 0.6 * normalized delta of
// the champion baseline versus the player's overall baseline.
func (s *Recommend) individualFactor(ctx context.Context, in factorInput) (float64, int) {
	champion, err := s.BaselineService.PlayerBaseline(ctx, in.playerId, model.BaselineContext{
		Kind:       constant.ContextChampion,
		ChampionID: null.StringFrom(in.championId),
	})
	if err != nil {
		return 0, 0
	}

	normalizedDelta := 0.5
	overall, err := s.BaselineService.PlayerBaseline(ctx, in.playerId, model.BaselineContext{Kind: constant.ContextOverall})
	if err == nil {
		normalizedDelta = clamp01((champion.Metrics.WinRate - overall.Metrics.WinRate + 1) / 2)
	}

	return clamp01(0.4*champion.Metrics.WinRate + 0.6*normalizedDelta), champion.SampleSize
}

// synergyFactor averages the candidate's pairwise synergy with every locked
// teammate, weighted by role adjacency. No teammates means a neutral score.
func (s *Recommend) synergyFactor(ctx context.Context, in factorInput) (float64, int) {
	if in.team == nil || len(in.team.Assignments) == 0 {
		return 0.5, 0
	}

	overall, err := s.BaselineService.PlayerBaseline(ctx, in.playerId, model.BaselineContext{Kind: constant.ContextOverall})
	if err != nil {
		return 0.5, 0
	}

	var weightedSum, weightSum float64
	sampleSize := 0
	for _, mate := range in.team.Assignments {
		if mate.PlayerID == in.playerId {
			continue
		}

		pairWinRate, games := s.pairWinRate(ctx, in, mate)
		if games == 0 {
			continue
		}
		sampleSize += games

		adjacency := 0.5
		if row, ok := constant.RoleAdjacency[in.role]; ok {
			if w, ok := row[mate.Role]; ok {
				adjacency = w
			}
		}

		weightedSum += adjacency * (pairWinRate - overall.Metrics.WinRate)
		weightSum += adjacency
	}
	if weightSum == 0 {
		return 0.5, 0
	}

	// synergy in [-1,1] mapped onto [0,1]
	return clamp01((weightedSum/weightSum + 1) / 2), sampleSize
}

// pairWinRate is the player's win rate over matches shared with the
// teammate. Matches where both played their exact (champion, role) pairing
// are preferred; when none exist, all shared matches stand in.
func (s *Recommend) pairWinRate(ctx context.Context, in factorInput, mate model.Assignment) (float64, int) {
	shared, err := s.MatchRepo.GetMatchesSharedByPlayers(ctx, []string{in.playerId, mate.PlayerID}, time.Time{})
	if err != nil || len(shared) == 0 {
		return 0, 0
	}

	byMatch := lo.GroupBy(shared, func(r *model.MatchRecord) string { return r.MatchID })

	exactWins, exactGames := 0, 0
	anyWins, anyGames := 0, 0
	for _, records := range byMatch {
		var own, theirs *model.MatchRecord
		for _, r := range records {
			switch r.PlayerID {
			case in.playerId:
				own = r
			case mate.PlayerID:
				theirs = r
			}
		}
		if own == nil || theirs == nil {
			continue
		}

		anyGames++
		if own.Win {
			anyWins++
		}
		if own.ChampionID == in.championId && own.Role == in.role &&
			theirs.ChampionID == mate.ChampionID && theirs.Role == mate.Role {
			exactGames++
			if own.Win {
				exactWins++
			}
		}
	}

	if exactGames > 0 {
		return float64(exactWins) / float64(exactGames), exactGames
	}
	if anyGames > 0 {
		return float64(anyWins) / float64(anyGames), anyGames
	}
	return 0, 0
}

// recentFormFactor compares the short recent window against the long-run
// baseline. No recent matches means a neutral score.
func (s *Recommend) recentFormFactor(ctx context.Context, in factorInput) (float64, int) {
	since := s.Clock().AddDate(0, 0, -s.RecentFormDays)
	recent, err := s.MatchRepo.GetMatchesByPlayer(ctx, in.playerId, &model.MatchFilter{
		From: null.TimeFrom(since),
	})
	if err != nil || len(recent) == 0 {
		return 0.5, 0
	}

	overall, err := s.BaselineService.PlayerBaseline(ctx, in.playerId, model.BaselineContext{Kind: constant.ContextOverall})
	if err != nil {
		return 0.5, 0
	}

	recentMetrics := aggregateMetrics(recent)
	return clamp01((recentMetrics.WinRate - overall.Metrics.WinRate + 1) / 2), len(recent)
}

func (s *Recommend) metaFactor(ctx context.Context, in factorInput) (float64, int) {
	if s.MetaService == nil {
		return 0.5, 0
	}
	popularity, err := s.MetaService.Popularity(ctx, in.championId, in.role)
	if err != nil {
		log.Warn().Err(err).Str("championId", in.championId).Msg("meta signal unavailable; using neutral score")
		return 0.5, 0
	}
	return clamp01(popularity), 0
}

// confidenceFactor grows with the champion-bucket sample size and shrinks
// with the width of the win-rate interval behind the other factors.
func (s *Recommend) confidenceFactor(ctx context.Context, in factorInput) (float64, int) {
	champion, err := s.BaselineService.PlayerBaseline(ctx, in.playerId, model.BaselineContext{
		Kind:       constant.ContextChampion,
		ChampionID: null.StringFrom(in.championId),
	})
	if err != nil {
		return 0, 0
	}

	coverage := math.Min(1, float64(champion.SampleSize)/float64(s.MinSampleSize))

	width := champion.WinRateInterval.Upper - champion.WinRateInterval.Lower
	width = clamp01(width)

	return clamp01(coverage * (1 - width/2)), champion.SampleSize
}

func (s *Recommend) candidateChampions(ctx context.Context, playerId, role string) ([]string, error) {
	records, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, &model.MatchFilter{Role: null.StringFrom(role)})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		// fall back to the player's full champion pool
		records, err = s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
		if err != nil {
			return nil, err
		}
	}
	champions := lo.Uniq(lo.Map(records, func(r *model.MatchRecord, _ int) string {
		return r.ChampionID
	}))
	sort.Strings(champions)
	return champions, nil
}

// justify orders the factors by contribution, largest first.
func justify(r *model.Recommendation) string {
	factors := append([]model.FactorScore(nil), r.Factors...)
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Weighted > factors[j].Weighted
	})

	parts := make([]string, 0, len(factors))
	for _, f := range factors {
		parts = append(parts, fmt.Sprintf("%s %.2f", strings.ReplaceAll(f.Name, "_", " "), f.Score))
	}
	return fmt.Sprintf("%s in %s scores %.2f, driven by %s", r.ChampionID, r.Role, r.Score, strings.Join(parts, ", then "))
}

func factorNames() []string {
	return []string{
		constant.FactorIndividual,
		constant.FactorSynergy,
		constant.FactorRecentForm,
		constant.FactorMeta,
		constant.FactorConfidence,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func recommendCacheParams(role string, team *model.TeamContext, strategy string, overrides map[string]float64) map[string]string {
	params := map[string]string{
		"role":     role,
		"strategy": strategy,
	}
	if team != nil && len(team.Assignments) > 0 {
		params["team"] = model.TeamComposition{Assignments: team.Assignments}.Key()
	}
	for name, w := range overrides {
		params["w:"+name] = fmt.Sprintf("%.4f", w)
	}
	return params
}
