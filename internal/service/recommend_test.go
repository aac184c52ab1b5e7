package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
)

func newTestRecommend(src MatchSource, now time.Time) *Recommend {
	s := &Recommend{
		MatchRepo:       src,
		BaselineService: newTestBaseline(src, newFakeBaselineStore(), now),
		StatService:     newTestStat(),
		MetaService:     NoopMeta{},
		BaseWeights: map[string]float64{
			constant.FactorIndividual: 0.35,
			constant.FactorSynergy:    0.25,
			constant.FactorRecentForm: 0.20,
			constant.FactorMeta:       0.15,
			constant.FactorConfidence: 0.05,
		},
		ConfidenceFloor: 0.2,
		RecentFormDays:  14,
		MinSampleSize:   10,
		Clock:           func() time.Time { return now },
	}
	s.registerFactors()
	return s
}

func TestRecommendRanksStrongerChampionFirst(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	playedAt := now.AddDate(0, 0, -3)

	records := make([]*model.MatchRecord, 0, 20)
	for i := 0; i < 10; i++ {
		records = append(records, mkRecord(fmt.Sprintf("rec-a%d", i), "rec-p1", "strong", constant.RoleMid, i < 8, playedAt))
		records = append(records, mkRecord(fmt.Sprintf("rec-b%d", i), "rec-p1", "weak", constant.RoleMid, i < 2, playedAt))
	}
	s := newTestRecommend(&fakeMatchSource{records: records}, now)

	result, err := s.Recommend(context.Background(), "rec-p1", constant.RoleMid, nil, "", nil)
	require.NoError(t, err)
	require.False(t, result.Flagged)
	require.NotEmpty(t, result.Recommendations)

	assert.Equal(t, "strong", result.Recommendations[0].ChampionID)
	assert.Equal(t, constant.StrategyBalanced, result.Strategy)
	assert.NotEmpty(t, result.Recommendations[0].Justification)
	assert.Len(t, result.Recommendations[0].Factors, 5)
	if len(result.Recommendations) > 1 {
		assert.Greater(t, result.Recommendations[0].Score, result.Recommendations[1].Score)
	}
}

func TestRecommendFlagsWhenNothingClearsFloor(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := []*model.MatchRecord{
		mkRecord("rec-f1", "rec-p2", "ahri", constant.RoleMid, true, now.AddDate(0, 0, -1)),
	}
	s := newTestRecommend(&fakeMatchSource{records: records}, now)
	s.ConfidenceFloor = 0.99

	result, err := s.Recommend(context.Background(), "rec-p2", constant.RoleMid, nil, "", nil)
	require.NoError(t, err)
	assert.True(t, result.Flagged)
	assert.Empty(t, result.Recommendations)
	assert.NotEmpty(t, result.Reason)
}

func TestRecommendFlagsWhenNoCandidates(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestRecommend(&fakeMatchSource{}, now)

	result, err := s.Recommend(context.Background(), "rec-p3", constant.RoleMid, nil, "", nil)
	require.NoError(t, err)
	assert.True(t, result.Flagged)
	assert.Empty(t, result.Recommendations)
}

func TestRecommendRejectsInvalidInput(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestRecommend(&fakeMatchSource{}, now)

	_, err := s.Recommend(context.Background(), "rec-p4", "GOALKEEPER", nil, "", nil)
	assert.Error(t, err)

	_, err = s.Recommend(context.Background(), "rec-p4", constant.RoleMid, nil, "yolo", nil)
	assert.Error(t, err)

	_, err = s.Recommend(context.Background(), "rec-p4", constant.RoleMid, nil, "", map[string]float64{"bogus": 0.5})
	assert.Error(t, err)

	_, err = s.Recommend(context.Background(), "rec-p4", constant.RoleMid, nil, "", map[string]float64{constant.FactorMeta: -1})
	assert.Error(t, err)
}

func TestResolveWeightsNormalization(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestRecommend(&fakeMatchSource{}, now)

	weights, normalized, err := s.resolveWeights(constant.StrategyBalanced, nil)
	require.NoError(t, err)
	assert.False(t, normalized)

	var sum float64
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// an override that breaks the sum triggers re-normalization
	weights, normalized, err = s.resolveWeights(constant.StrategyBalanced, map[string]float64{
		constant.FactorIndividual: 2,
	})
	require.NoError(t, err)
	assert.True(t, normalized)
	sum = 0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestStrategyPresetsShiftWeights(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestRecommend(&fakeMatchSource{}, now)

	balanced, err := s.strategyWeights(constant.StrategyBalanced)
	require.NoError(t, err)
	conservative, err := s.strategyWeights(constant.StrategyConservative)
	require.NoError(t, err)
	highVariance, err := s.strategyWeights(constant.StrategyHighVariance)
	require.NoError(t, err)
	counter, err := s.strategyWeights(constant.StrategyCounter)
	require.NoError(t, err)

	assert.Greater(t, conservative[constant.FactorIndividual], balanced[constant.FactorIndividual])
	assert.Less(t, conservative[constant.FactorRecentForm], balanced[constant.FactorRecentForm])
	assert.Greater(t, highVariance[constant.FactorRecentForm], balanced[constant.FactorRecentForm])
	assert.Greater(t, counter[constant.FactorMeta], balanced[constant.FactorMeta])

	_, err = s.strategyWeights("yolo")
	assert.Error(t, err)
}

// Raising any single factor score while the others stay fixed must not lower
// the composite, since every weight is non-negative.
func TestScoreCandidateMonotonicInEachFactor(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestRecommend(&fakeMatchSource{}, now)

	scores := make(map[string]float64, len(factorNames()))
	for _, name := range factorNames() {
		scores[name] = 0.5
	}
	s.factors = nil
	for _, name := range factorNames() {
		name := name
		s.factors = append(s.factors, recommendationFactor{name, func(ctx context.Context, in factorInput) (float64, int) {
			return scores[name], 10
		}})
	}

	base, err := s.ScoreCandidate(context.Background(), "rec-p6", "ahri", constant.RoleMid, nil, nil)
	require.NoError(t, err)

	for _, name := range factorNames() {
		scores[name] = 0.8
		raised, err := s.ScoreCandidate(context.Background(), "rec-p6", "ahri", constant.RoleMid, nil, nil)
		require.NoError(t, err)
		assert.Greaterf(t, raised.Score, base.Score, "raising %s lowered the composite", name)
		scores[name] = 0.5
	}
}

func TestScoreCandidateSynergyWithTeammates(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	playedAt := now.AddDate(0, 0, -2)

	records := make([]*model.MatchRecord, 0)
	// ten shared wins with the jungler on the exact pairing
	for i := 0; i < 10; i++ {
		matchId := fmt.Sprintf("rec-s%d", i)
		records = append(records,
			mkRecord(matchId, "rec-p5", "ahri", constant.RoleMid, true, playedAt),
			mkRecord(matchId, "rec-mate", "leesin", constant.RoleJungle, true, playedAt),
		)
	}
	// solo losses keep the overall baseline below the pair win rate
	for i := 0; i < 10; i++ {
		records = append(records, mkRecord(fmt.Sprintf("rec-solo%d", i), "rec-p5", "ahri", constant.RoleMid, false, playedAt.AddDate(0, 0, -1)))
	}
	s := newTestRecommend(&fakeMatchSource{records: records}, now)

	team := &model.TeamContext{Assignments: []model.Assignment{
		{Role: constant.RoleJungle, PlayerID: "rec-mate", ChampionID: "leesin"},
	}}

	recommendation, err := s.ScoreCandidate(context.Background(), "rec-p5", "ahri", constant.RoleMid, team, nil)
	require.NoError(t, err)

	var synergy model.FactorScore
	for _, f := range recommendation.Factors {
		if f.Name == constant.FactorSynergy {
			synergy = f
		}
	}
	// shared games are all wins versus a 0.5 overall baseline
	assert.Greater(t, synergy.Score, 0.5)
}
