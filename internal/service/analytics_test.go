package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
)

func newTestAnalytics(src MatchSource, now time.Time) *Analytics {
	return &Analytics{
		MatchRepo:       src,
		BaselineService: newTestBaseline(src, newFakeBaselineStore(), now),
		StatService:     newTestStat(),
		MinSampleSize:   10,
		Clock:           func() time.Time { return now },
	}
}

func TestAnalyzePlayerPerformance(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := make([]*model.MatchRecord, 0, 20)
	for i := 0; i < 20; i++ {
		role := constant.RoleMid
		champion := "ahri"
		if i%4 == 0 {
			role = constant.RoleTop
			champion = "garen"
		}
		records = append(records, mkRecord(fmt.Sprintf("an-m%d", i), "an-p1", champion, role, i < 12, now.AddDate(0, 0, -i)))
	}
	s := newTestAnalytics(&fakeMatchSource{records: records}, now)

	analytics, err := s.AnalyzePlayerPerformance(context.Background(), "an-p1", nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, analytics.Overall.WinRate, 1e-9, spew.Sdump(analytics.Overall))
	assert.Equal(t, 20, analytics.SampleSize)
	assert.False(t, analytics.LowConfidence)
	assert.Len(t, analytics.ByRole, 2)
	assert.Len(t, analytics.ByChampion, 2)
	assert.NotEmpty(t, analytics.Deltas)
	assert.Equal(t, 20, analytics.Trend.SampleSize)
}

func TestAnalyzePlayerPerformanceEmptyHistory(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestAnalytics(&fakeMatchSource{}, now)

	_, err := s.AnalyzePlayerPerformance(context.Background(), "an-empty", nil)
	require.Error(t, err)
	assert.True(t, rserr.IsInsufficientData(err))
}

func TestAnalyzeChampionPerformance(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := []*model.MatchRecord{
		mkRecord("ch-m1", "an-p2", "ahri", constant.RoleMid, true, now.AddDate(0, 0, -1)),
		mkRecord("ch-m2", "an-p2", "ahri", constant.RoleMid, false, now.AddDate(0, 0, -2)),
		mkRecord("ch-m3", "an-p2", "garen", constant.RoleTop, true, now.AddDate(0, 0, -3)),
	}
	s := newTestAnalytics(&fakeMatchSource{records: records}, now)

	analytics, err := s.AnalyzeChampionPerformance(context.Background(), "an-p2", "ahri", null.String{})
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.SampleSize)
	assert.InDelta(t, 0.5, analytics.Metrics.WinRate, 1e-9)
	assert.True(t, analytics.LowConfidence)
	assert.Equal(t, 2, analytics.WinRateInterval.SampleSize)

	_, err = s.AnalyzeChampionPerformance(context.Background(), "an-p2", "", null.String{})
	assert.Error(t, err)

	_, err = s.AnalyzeChampionPerformance(context.Background(), "an-p2", "ahri", null.StringFrom("GOALKEEPER"))
	assert.Error(t, err)
}

func TestCalculatePerformanceTrends(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -28)

	// four weekly windows with 1, 3, 5 and 7 wins out of 7 games each
	records := make([]*model.MatchRecord, 0, 28)
	for week := 0; week < 4; week++ {
		for game := 0; game < 7; game++ {
			playedAt := start.AddDate(0, 0, week*7+game)
			win := game < 2*week+1
			records = append(records, mkRecord(fmt.Sprintf("tr-m%d-%d", week, game), "an-p3", "ahri", constant.RoleMid, win, playedAt))
		}
	}
	s := newTestAnalytics(&fakeMatchSource{records: records}, now)

	trends, err := s.CalculatePerformanceTrends(context.Background(), "an-p3", model.MetricWinRate, 7)
	require.NoError(t, err)
	require.Len(t, trends.Windows, 4)
	assert.Equal(t, constant.TrendIncreasing, trends.Analysis.Direction)
	assert.False(t, trends.LowConfidence)
	assert.InDelta(t, 1.0/7, trends.Windows[0].Metrics.WinRate, 1e-9)
	assert.InDelta(t, 1.0, trends.Windows[3].Metrics.WinRate, 1e-9)

	_, err = s.CalculatePerformanceTrends(context.Background(), "an-p3", "bogus", 7)
	assert.Error(t, err)
}

func TestCompareEntities(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := make([]*model.MatchRecord, 0, 24)
	for i := 0; i < 12; i++ {
		records = append(records, mkRecord(fmt.Sprintf("cmp-a%d", i), "an-strong", "ahri", constant.RoleMid, i < 9, now.AddDate(0, 0, -i)))
		records = append(records, mkRecord(fmt.Sprintf("cmp-b%d", i), "an-weak", "ahri", constant.RoleMid, i < 3, now.AddDate(0, 0, -i)))
	}
	s := newTestAnalytics(&fakeMatchSource{records: records}, now)

	comparison, err := s.CompareEntities(context.Background(), []string{"an-strong", "an-weak", "an-absent"}, model.MetricWinRate, nil)
	require.NoError(t, err)

	// the absent player is omitted rather than failing the comparison
	require.Len(t, comparison.Entries, 2)
	assert.Equal(t, "an-strong", comparison.Entries[0].ID)
	assert.Equal(t, 1, comparison.Entries[0].Rank)
	assert.InDelta(t, 0.75, comparison.Entries[0].Value, 1e-9)
	assert.Equal(t, "an-weak", comparison.Entries[1].ID)
	require.Len(t, comparison.Pairwise, 1)

	_, err = s.CompareEntities(context.Background(), []string{"an-absent", "an-gone"}, model.MetricWinRate, nil)
	require.Error(t, err)
	assert.True(t, rserr.IsInsufficientData(err))

	_, err = s.CompareEntities(context.Background(), []string{"an-strong"}, model.MetricWinRate, nil)
	assert.Error(t, err)
}
