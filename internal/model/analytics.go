package model

import "time"

// PlayerAnalytics is the full output bundle of analyzePlayerPerformance.
type PlayerAnalytics struct {
	PlayerID string      `json:"playerId"`
	Filter   MatchFilter `json:"filter"`

	Overall    PerformanceMetrics            `json:"overall"`
	Deltas     []PerformanceDelta            `json:"deltas"`
	ByRole     map[string]PerformanceMetrics `json:"byRole"`
	ByChampion map[string]PerformanceMetrics `json:"byChampion"`

	Trend TrendAnalysis `json:"trend"`

	SampleSize    int       `json:"sampleSize"`
	LowConfidence bool      `json:"lowConfidence"`
	ComputedAt    time.Time `json:"computedAt"`
}

// ChampionAnalytics is the narrower champion/role slice of the pipeline.
type ChampionAnalytics struct {
	PlayerID   string `json:"playerId"`
	ChampionID string `json:"championId"`
	Role       string `json:"role,omitempty"`

	Metrics PerformanceMetrics `json:"metrics"`
	Deltas  []PerformanceDelta `json:"deltas"`

	WinRateInterval ConfidenceInterval `json:"winRateInterval"`

	SampleSize    int  `json:"sampleSize"`
	LowConfidence bool `json:"lowConfidence"`
}

// TrendWindow is one rolling-window bucket of a performance trend.
type TrendWindow struct {
	Start   time.Time          `json:"start"`
	End     time.Time          `json:"end"`
	Metrics PerformanceMetrics `json:"metrics"`
}

// PerformanceTrends is the windowed trend result for one player and metric.
type PerformanceTrends struct {
	PlayerID   string        `json:"playerId"`
	Metric     string        `json:"metric"`
	WindowDays int           `json:"windowDays"`
	Windows    []TrendWindow `json:"windows"`
	Analysis   TrendAnalysis `json:"analysis"`

	SampleSize    int  `json:"sampleSize"`
	LowConfidence bool `json:"lowConfidence"`
}

// ComparisonEntry is one entity's standing in a multi-entity comparison.
type ComparisonEntry struct {
	ID         string  `json:"id"`
	Value      float64 `json:"value"`
	Rank       int     `json:"rank"`
	Percentile float64 `json:"percentile"`
	SampleSize int     `json:"sampleSize"`
}

// PairwiseSignificance is the significance test between two compared entities.
type PairwiseSignificance struct {
	A    string           `json:"a"`
	B    string           `json:"b"`
	Test SignificanceTest `json:"test"`
}

// EntityComparison ranks entities on one metric with pairwise significance.
type EntityComparison struct {
	Metric   string                 `json:"metric"`
	Entries  []ComparisonEntry      `json:"entries"`
	Pairwise []PairwiseSignificance `json:"pairwise"`
}
