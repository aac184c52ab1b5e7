package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftstats/backend-next/internal/constant"
)

func TestConfidenceIntervalMethodSelection(t *testing.T) {
	s := newTestStat()

	large := make([]float64, 50)
	for i := range large {
		large[i] = float64(i%10) / 10
	}
	ci, err := s.ConfidenceInterval(large, 0.95)
	require.NoError(t, err)
	assert.Equal(t, constant.MethodZScore, ci.Method)
	assert.Less(t, ci.Lower, ci.Upper)

	small := []float64{0.4, 0.5, 0.6, 0.5, 0.45}
	ci, err = s.ConfidenceInterval(small, 0.95)
	require.NoError(t, err)
	assert.Equal(t, constant.MethodTDist, ci.Method)
	assert.True(t, ci.Contains(0.49))

	single := []float64{0.7}
	ci, err = s.ConfidenceInterval(single, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 0.7, ci.Lower)
	assert.Equal(t, 0.7, ci.Upper)
}

func TestConfidenceIntervalRejectsBadInput(t *testing.T) {
	s := newTestStat()

	_, err := s.ConfidenceInterval(nil, 0.95)
	assert.Error(t, err)

	_, err = s.ConfidenceInterval([]float64{1, 2}, 1.5)
	assert.Error(t, err)
}

// TestConfidenceIntervalCoverage draws repeated normal samples and checks the
// 95% interval covers the true mean at roughly the nominal rate.
func TestConfidenceIntervalCoverage(t *testing.T) {
	s := newTestStat()
	rng := rand.New(rand.NewSource(42))

	covered := 0
	const trials = 200
	for i := 0; i < trials; i++ {
		sample := make([]float64, 40)
		for j := range sample {
			sample[j] = rng.NormFloat64()
		}
		ci, err := s.ConfidenceInterval(sample, 0.95)
		require.NoError(t, err)
		if ci.Contains(0) {
			covered++
		}
	}
	assert.GreaterOrEqual(t, float64(covered)/trials, 0.9)
}

func TestSignificanceTestIdenticalAndShifted(t *testing.T) {
	s := newTestStat()

	same := make([]float64, 30)
	for i := range same {
		same[i] = 0.5
	}
	test, err := s.SignificanceTest(same, same)
	require.NoError(t, err)
	assert.False(t, test.Significant)
	assert.InDelta(t, 1.0, test.PValue, 1e-9)

	a := make([]float64, 30)
	b := make([]float64, 30)
	for i := range a {
		a[i] = float64(i) * 0.01
		b[i] = float64(i)*0.01 + 5
	}
	test, err = s.SignificanceTest(a, b)
	require.NoError(t, err)
	assert.True(t, test.Significant)
	assert.Less(t, test.PValue, 0.001)
	assert.NotEmpty(t, test.Interpretation)
}

func TestSignificanceTestRejectsThinSamples(t *testing.T) {
	s := newTestStat()
	_, err := s.SignificanceTest([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestChiSquareTest(t *testing.T) {
	s := newTestStat()

	associated := [][]float64{
		{90, 10},
		{10, 90},
	}
	test, err := s.ChiSquareTest(associated)
	require.NoError(t, err)
	assert.Equal(t, constant.MethodChiSquare, test.Method)
	assert.True(t, test.Significant)

	independent := [][]float64{
		{50, 50},
		{50, 50},
	}
	test, err = s.ChiSquareTest(independent)
	require.NoError(t, err)
	assert.False(t, test.Significant)

	_, err = s.ChiSquareTest([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestDetectOutliersIQR(t *testing.T) {
	s := newTestStat()

	report, err := s.DetectOutliers([]float64{1, 2, 3, 4, 5, 100}, constant.MethodIQR)
	require.NoError(t, err)
	require.Len(t, report.Outliers, 1)
	assert.Equal(t, 5, report.Outliers[0].Index)
	assert.Equal(t, 100.0, report.Outliers[0].Value)
	assert.Greater(t, report.Outliers[0].Score, 0.5)
}

func TestDetectOutliersRequiresEnoughPoints(t *testing.T) {
	s := newTestStat()
	_, err := s.DetectOutliers([]float64{1, 2, 3}, constant.MethodIQR)
	assert.Error(t, err)

	_, err = s.DetectOutliers([]float64{1, 2, 3, 4}, "bogus")
	assert.Error(t, err)
}

func TestTrendAnalysisDirections(t *testing.T) {
	s := newTestStat()

	increasing := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	trend, err := s.TrendAnalysis(increasing)
	require.NoError(t, err)
	assert.Equal(t, constant.TrendIncreasing, trend.Direction)
	assert.InDelta(t, 0.1, trend.Slope, 1e-9)
	assert.InDelta(t, 1.0, trend.R2, 1e-9)
	assert.Equal(t, constant.MethodSegmented, trend.ChangePointMethod)

	flat := []float64{0.5, 0.5, 0.5, 0.5}
	trend, err = s.TrendAnalysis(flat)
	require.NoError(t, err)
	assert.Equal(t, constant.TrendStable, trend.Direction)

	_, err = s.TrendAnalysis([]float64{1})
	assert.Error(t, err)
}

func TestCorrelationMatrix(t *testing.T) {
	s := newTestStat()

	matrix, err := s.Correlation(map[string][]float64{
		"kda":     {1, 2, 3, 4, 5},
		"winRate": {2, 4, 6, 8, 10},
	})
	require.NoError(t, err)
	require.Len(t, matrix.Variables, 2)
	assert.InDelta(t, 1.0, matrix.Matrix[0][1], 1e-9)
	assert.InDelta(t, 1.0, matrix.Matrix[0][0], 1e-9)

	_, err = s.Correlation(map[string][]float64{"only": {1, 2, 3}})
	assert.Error(t, err)
}

func TestPercentileRank(t *testing.T) {
	s := newTestStat()

	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 50, s.PercentileRank(values, 3), 1e-9)
	assert.InDelta(t, 90, s.PercentileRank(values, 5), 1e-9)
	assert.InDelta(t, 0, s.PercentileRank(nil, 3), 1e-9)
}
