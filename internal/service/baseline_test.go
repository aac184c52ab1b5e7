package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
	modelcache "github.com/riftstats/backend-next/internal/model/cache"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
)

func TestWeightedBaselineFavorsRecentMatches(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeMatchSource{records: []*model.MatchRecord{
		mkRecord("m1", "bl-recent", "c1", constant.RoleMid, true, now.AddDate(0, 0, -1)),
		mkRecord("m2", "bl-recent", "c1", constant.RoleMid, false, now.AddDate(0, 0, -60)),
	}}
	s := newTestBaseline(src, newFakeBaselineStore(), now)
	s.DecayRate = 0.1

	b, err := s.PlayerBaseline(context.Background(), "bl-recent", model.BaselineContext{Kind: constant.ContextOverall})
	require.NoError(t, err)

	// the recent win outweighs the old loss
	assert.Greater(t, b.Metrics.WinRate, 0.5)
	assert.Equal(t, 2, b.SampleSize)
	assert.Less(t, b.EffectiveSampleSize, 2.0)
	assert.True(t, b.LowConfidence)
}

func TestWeightedBaselineEquidistantIsUnweightedMean(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	playedAt := now.AddDate(0, 0, -3)
	src := &fakeMatchSource{records: []*model.MatchRecord{
		mkRecord("m1", "bl-equi", "c1", constant.RoleMid, true, playedAt),
		mkRecord("m2", "bl-equi", "c1", constant.RoleMid, false, playedAt),
	}}
	s := newTestBaseline(src, newFakeBaselineStore(), now)

	b, err := s.PlayerBaseline(context.Background(), "bl-equi", model.BaselineContext{Kind: constant.ContextOverall})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, b.Metrics.WinRate, 1e-9)
	assert.InDelta(t, 2.0, b.EffectiveSampleSize, 1e-9)
}

func TestPlayerBaselineCachesResult(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeMatchSource{records: []*model.MatchRecord{
		mkRecord("m1", "bl-cached", "c1", constant.RoleMid, true, now.AddDate(0, 0, -1)),
	}}
	s := newTestBaseline(src, newFakeBaselineStore(), now)

	_, err := s.PlayerBaseline(context.Background(), "bl-cached", model.BaselineContext{Kind: constant.ContextOverall})
	require.NoError(t, err)
	scansAfterFirst := src.scans

	_, err = s.PlayerBaseline(context.Background(), "bl-cached", model.BaselineContext{Kind: constant.ContextOverall})
	require.NoError(t, err)
	assert.Equal(t, scansAfterFirst, src.scans)
}

func TestPlayerBaselineInsufficientData(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestBaseline(&fakeMatchSource{}, newFakeBaselineStore(), now)

	_, err := s.PlayerBaseline(context.Background(), "bl-empty", model.BaselineContext{Kind: constant.ContextOverall})
	require.Error(t, err)
	assert.True(t, rserr.IsInsufficientData(err))
}

func TestPlayerBaselineFallsBackToSnapshot(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeBaselineStore()
	bctx := model.BaselineContext{Kind: constant.ContextOverall}
	store.elements["bl-snap"] = []*model.BaselineElement{{
		PlayerID:            "bl-snap",
		ContextKey:          bctx.Key(),
		WinRate:             0.55,
		KDA:                 3.1,
		SampleSize:          25,
		EffectiveSampleSize: 21.4,
		ComputedAt:          now.AddDate(0, 0, -2),
	}}
	s := newTestBaseline(&fakeMatchSource{}, store, now)

	b, err := s.PlayerBaseline(context.Background(), "bl-snap", bctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, b.Metrics.WinRate, 1e-9)
	assert.Equal(t, 25, b.SampleSize)
	assert.False(t, b.LowConfidence)
}

func TestPlayerBaselineShrinksThinContexts(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	playedAt := now.AddDate(0, 0, -2)

	records := []*model.MatchRecord{
		// two wins on the queried champion
		mkRecord("m1", "bl-shrink", "focus", constant.RoleMid, true, playedAt),
		mkRecord("m2", "bl-shrink", "focus", constant.RoleMid, true, playedAt),
	}
	// twenty losses elsewhere pull the overall baseline down
	for i := 0; i < 20; i++ {
		records = append(records, mkRecord("mx"+string(rune('a'+i)), "bl-shrink", "other", constant.RoleTop, false, playedAt))
	}
	s := newTestBaseline(&fakeMatchSource{records: records}, newFakeBaselineStore(), now)

	b, err := s.PlayerBaseline(context.Background(), "bl-shrink", model.BaselineContext{
		Kind:       constant.ContextChampion,
		ChampionID: null.StringFrom("focus"),
	})
	require.NoError(t, err)

	// the raw bucket win rate is 1.0; shrinkage blends it toward the overall
	assert.True(t, b.LowConfidence)
	assert.Less(t, b.Metrics.WinRate, 1.0)
	assert.Greater(t, b.Metrics.WinRate, 2.0/22)
}

func TestPerformanceDeltas(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	playedAt := now.AddDate(0, 0, -1)

	records := make([]*model.MatchRecord, 0, 20)
	for i := 0; i < 20; i++ {
		records = append(records, mkRecord("md"+string(rune('a'+i)), "bl-delta", "c1", constant.RoleMid, i < 12, playedAt))
	}
	s := newTestBaseline(&fakeMatchSource{records: records}, newFakeBaselineStore(), now)

	actual := model.PerformanceMetrics{WinRate: 1.0, KDA: 5, CSPerMin: 7, VisionPerMin: 0.8, DamagePerMin: 600, GoldPerMin: 370, KillParticipation: 0.7}
	deltas, err := s.PerformanceDeltas(context.Background(), "bl-delta", model.BaselineContext{Kind: constant.ContextOverall}, actual)
	require.NoError(t, err)
	require.Len(t, deltas, len(model.MetricNames))

	byMetric := make(map[string]model.PerformanceDelta, len(deltas))
	for _, d := range deltas {
		byMetric[d.Metric] = d
	}

	winRate := byMetric[model.MetricWinRate]
	assert.InDelta(t, 0.6, winRate.Baseline, 1e-9)
	assert.InDelta(t, 0.4, winRate.Absolute, 1e-9)
	// eight losses below, twelve wins tied at the actual value
	assert.InDelta(t, 70, winRate.Percentile, 1e-9)
}

func TestUpdateBaselinesPersistsAndInvalidates(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	playedAt := now.AddDate(0, 0, -1)
	src := &fakeMatchSource{records: []*model.MatchRecord{
		mkRecord("m1", "bl-update", "c1", constant.RoleMid, true, playedAt),
		mkRecord("m2", "bl-update", "c2", constant.RoleTop, false, playedAt),
	}}
	store := newFakeBaselineStore()
	s := newTestBaseline(src, store, now)

	// seed a player-scoped cache entry that must not survive the update
	require.NoError(t, modelcache.PlayerAnalytics.Set("bl-update|stale", model.PlayerAnalytics{PlayerID: "bl-update"}, time.Minute))

	require.NoError(t, s.UpdateBaselines(context.Background(), "bl-update"))

	// overall + 2 roles + 2 champions
	saved := store.elements["bl-update"]
	require.Len(t, saved, 5)
	keys := make(map[string]struct{}, len(saved))
	for _, e := range saved {
		keys[e.ContextKey] = struct{}{}
	}
	assert.Contains(t, keys, model.BaselineContext{Kind: constant.ContextOverall}.Key())
	assert.Contains(t, keys, model.BaselineContext{Kind: constant.ContextRole, Role: null.StringFrom(constant.RoleMid)}.Key())
	assert.Contains(t, keys, model.BaselineContext{Kind: constant.ContextChampion, ChampionID: null.StringFrom("c2")}.Key())

	var stale model.PlayerAnalytics
	assert.Error(t, modelcache.PlayerAnalytics.Get("bl-update|stale", &stale))
}

func TestValidateBaselineContext(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestBaseline(&fakeMatchSource{}, newFakeBaselineStore(), now)

	_, err := s.PlayerBaseline(context.Background(), "bl-bad", model.BaselineContext{
		Kind: constant.ContextRole,
		Role: null.StringFrom("GOALKEEPER"),
	})
	assert.Error(t, err)

	_, err = s.PlayerBaseline(context.Background(), "bl-bad", model.BaselineContext{Kind: "weekly"})
	assert.Error(t, err)

	_, err = s.PlayerBaseline(context.Background(), "bl-bad", model.BaselineContext{Kind: constant.ContextTeam})
	assert.Error(t, err)
}
