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
	"github.com/riftstats/backend-next/internal/pkg/rserr"
)

func newTestComposition(src MatchSource, now time.Time) *Composition {
	return &Composition{
		MatchRepo:       src,
		BaselineService: newTestBaseline(src, newFakeBaselineStore(), now),
		StatService:     newTestStat(),
		MinSampleSize:   10,
		Clock:           func() time.Time { return now },
	}
}

func fullComposition(prefix string, champions [5]string) *model.TeamComposition {
	comp := &model.TeamComposition{}
	for i, role := range constant.Roles {
		comp.Assignments = append(comp.Assignments, model.Assignment{
			Role:       role,
			PlayerID:   fmt.Sprintf("%s-p%d", prefix, i),
			ChampionID: champions[i],
		})
	}
	return comp
}

// compositionMatch emits one record per assignment for a single match.
func compositionMatch(matchId string, comp *model.TeamComposition, win bool, playedAt time.Time) []*model.MatchRecord {
	records := make([]*model.MatchRecord, 0, len(comp.Assignments))
	for _, a := range comp.Assignments {
		records = append(records, mkRecord(matchId, a.PlayerID, a.ChampionID, a.Role, win, playedAt))
	}
	return records
}

func TestCompositionSimilarityReflexiveAndSymmetric(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := fullComposition("sim", [5]string{"garen", "leesin", "ahri", "jinx", "thresh"})
	b := fullComposition("sim", [5]string{"garen", "leesin", "ahri", "caitlyn", "thresh"})

	assert.InDelta(t, 1.0, compositionSimilarity(a, a, now, now), 1e-9)
	assert.InDelta(t,
		compositionSimilarity(a, b, now, now.AddDate(0, 0, -10)),
		compositionSimilarity(b, a, now.AddDate(0, 0, -10), now),
		1e-9)
	assert.Less(t, compositionSimilarity(a, b, now, now), 1.0)
}

func TestAnalyzeCompositionPerformance(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	comp := fullComposition("cperf", [5]string{"garen", "leesin", "ahri", "jinx", "thresh"})

	records := make([]*model.MatchRecord, 0)
	for i := 0; i < 10; i++ {
		records = append(records, compositionMatch(fmt.Sprintf("cperf-m%d", i), comp, i < 6, now.AddDate(0, 0, -i))...)
	}
	s := newTestComposition(&fakeMatchSource{records: records}, now)

	performance, err := s.AnalyzeCompositionPerformance(context.Background(), comp)
	require.NoError(t, err)
	assert.Equal(t, 10, performance.Games)
	assert.Equal(t, 6, performance.Wins)
	assert.InDelta(t, 0.6, performance.WinRate, 1e-9)
	assert.InDelta(t, 1800, performance.AvgDurationSeconds, 1e-9)
	assert.False(t, performance.LowConfidence)
	assert.Len(t, performance.PlayerDeltas, 5)
}

func TestAnalyzeCompositionPerformanceRejectsInvalid(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestComposition(&fakeMatchSource{}, now)

	_, err := s.AnalyzeCompositionPerformance(context.Background(), &model.TeamComposition{})
	assert.Error(t, err)

	duplicated := &model.TeamComposition{Assignments: []model.Assignment{
		{Role: constant.RoleMid, PlayerID: "x", ChampionID: "ahri"},
		{Role: constant.RoleMid, PlayerID: "y", ChampionID: "zed"},
	}}
	_, err = s.AnalyzeCompositionPerformance(context.Background(), duplicated)
	assert.Error(t, err)

	unplayed := fullComposition("cnone", [5]string{"a", "b", "c", "d", "e"})
	_, err = s.AnalyzeCompositionPerformance(context.Background(), unplayed)
	require.Error(t, err)
	assert.True(t, rserr.IsInsufficientData(err))
}

func TestFindSimilarCompositions(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	query := fullComposition("csim", [5]string{"garen", "leesin", "ahri", "jinx", "thresh"})

	// near: one champion swapped, played recently
	near := fullComposition("csim", [5]string{"garen", "leesin", "ahri", "caitlyn", "thresh"})
	// far: all champions different
	far := fullComposition("csim", [5]string{"sett", "vi", "zed", "ezreal", "lulu"})

	records := make([]*model.MatchRecord, 0)
	records = append(records, compositionMatch("csim-near", near, true, now)...)
	records = append(records, compositionMatch("csim-far", far, false, now)...)
	s := newTestComposition(&fakeMatchSource{records: records}, now)

	similar, err := s.FindSimilarCompositions(context.Background(), query, 0.8)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, near.Key(), similar[0].Composition.Key())
	assert.GreaterOrEqual(t, similar[0].Similarity, 0.8)
	assert.Equal(t, 1, similar[0].Games)

	// a permissive threshold surfaces the far composition as well
	similar, err = s.FindSimilarCompositions(context.Background(), query, 0.1)
	require.NoError(t, err)
	assert.Len(t, similar, 2)
	assert.GreaterOrEqual(t, similar[0].Similarity, similar[1].Similarity)

	_, err = s.FindSimilarCompositions(context.Background(), query, 1.5)
	assert.Error(t, err)
}

// A thinly played composition is flagged rather than rejected, and a close
// variant at similarity >= 0.8 is available to broaden the sample.
func TestAnalyzeCompositionPerformanceLowConfidenceBroadens(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	comp := fullComposition("cbrd", [5]string{"garen", "leesin", "ahri", "jinx", "thresh"})
	near := fullComposition("cbrd", [5]string{"garen", "leesin", "ahri", "caitlyn", "thresh"})

	records := make([]*model.MatchRecord, 0)
	records = append(records, compositionMatch("cbrd-m0", comp, true, now.AddDate(0, 0, -2))...)
	records = append(records, compositionMatch("cbrd-m1", comp, false, now.AddDate(0, 0, -1))...)
	for i := 0; i < 8; i++ {
		records = append(records, compositionMatch(fmt.Sprintf("cbrd-n%d", i), near, i%2 == 0, now)...)
	}
	s := newTestComposition(&fakeMatchSource{records: records}, now)

	performance, err := s.AnalyzeCompositionPerformance(context.Background(), comp)
	require.NoError(t, err)
	assert.Equal(t, 2, performance.Games)
	assert.True(t, performance.LowConfidence)

	similar, err := s.FindSimilarCompositions(context.Background(), comp, 0.8)
	require.NoError(t, err)
	require.NotEmpty(t, similar)
	assert.Equal(t, near.Key(), similar[0].Composition.Key())
	assert.GreaterOrEqual(t, similar[0].Similarity, 0.8)
	assert.Equal(t, 8, similar[0].Games)
}

func TestSynergyEffects(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	comp := fullComposition("csyn", [5]string{"garen", "leesin", "ahri", "jinx", "thresh"})

	records := make([]*model.MatchRecord, 0)
	// together the team always wins
	for i := 0; i < 6; i++ {
		records = append(records, compositionMatch(fmt.Sprintf("csyn-m%d", i), comp, true, now.AddDate(0, 0, -i))...)
	}
	// individually the players lose elsewhere, lowering their baselines
	for i, a := range comp.Assignments {
		for j := 0; j < 6; j++ {
			records = append(records, mkRecord(fmt.Sprintf("csyn-solo-%d-%d", i, j), a.PlayerID, a.ChampionID, a.Role, false, now.AddDate(0, 0, -10-j)))
		}
	}
	s := newTestComposition(&fakeMatchSource{records: records}, now)

	effects, err := s.SynergyEffects(context.Background(), comp)
	require.NoError(t, err)
	require.Len(t, effects, len(model.MetricNames))

	byMetric := make(map[string]model.SynergyEffect, len(effects))
	for _, e := range effects {
		byMetric[e.Metric] = e
	}
	winRate := byMetric[model.MetricWinRate]
	assert.InDelta(t, 1.0, winRate.Observed, 1e-9)
	assert.Greater(t, winRate.Synergy, 0.0)
}

func TestIdentifyOptimalCompositions(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	pool := make([]string, 0, 5)
	records := make([]*model.MatchRecord, 0)
	for i, role := range constant.Roles {
		playerId := fmt.Sprintf("copt-p%d", i)
		pool = append(pool, playerId)
		// each player has history in exactly one role, winning on their main
		for j := 0; j < 8; j++ {
			records = append(records, mkRecord(fmt.Sprintf("copt-m%d-%d", i, j), playerId, fmt.Sprintf("main%d", i), role, j < 6, now.AddDate(0, 0, -j)))
		}
	}
	s := newTestComposition(&fakeMatchSource{records: records}, now)

	scored, err := s.IdentifyOptimalCompositions(context.Background(), pool, &model.CompositionConstraints{
		LockedAssignments: map[string]string{"copt-p2": constant.RoleMid},
		ChampionPool:      map[string][]string{"copt-p4": {"offmeta"}},
		MaxResults:        3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, scored)
	assert.LessOrEqual(t, len(scored), 3)

	top := scored[0]
	require.Len(t, top.Composition.Assignments, 5)
	for _, a := range top.Composition.Assignments {
		if a.PlayerID == "copt-p2" {
			assert.Equal(t, constant.RoleMid, a.Role)
		}
		if a.PlayerID == "copt-p4" {
			// the champion-pool restriction forces the unplayed pick
			assert.Equal(t, "offmeta", a.ChampionID)
		}
	}
}

func TestIdentifyOptimalCompositionsValidation(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestComposition(&fakeMatchSource{}, now)

	_, err := s.IdentifyOptimalCompositions(context.Background(), []string{"a", "b"}, nil)
	assert.Error(t, err)

	_, err = s.IdentifyOptimalCompositions(context.Background(), []string{"a", "b", "c", "d", "e"}, &model.CompositionConstraints{
		LockedAssignments: map[string]string{"ghost": constant.RoleMid},
	})
	assert.Error(t, err)

	_, err = s.IdentifyOptimalCompositions(context.Background(), []string{"a", "b", "c", "d", "e"}, &model.CompositionConstraints{
		RequiredRoles: []string{"GOALKEEPER"},
	})
	assert.Error(t, err)
}
