package model

import (
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/guregu/null.v3"
)

// BaselineContext scopes which matches feed a baseline: overall, one role,
// one champion, or one fixed set of teammates.
type BaselineContext struct {
	Kind       string      `json:"kind"`
	Role       null.String `json:"role"`
	ChampionID null.String `json:"championId"`

	// TeamPlayerIDs scopes a team-context baseline to matches shared with
	// these teammates. Order-insensitive.
	TeamPlayerIDs []string `json:"teamPlayerIds,omitempty"`
}

// Key is the canonical bucket identity of the context, stable across
// equivalent contexts.
func (c BaselineContext) Key() string {
	var sb strings.Builder
	sb.WriteString(c.Kind)
	if c.Role.Valid {
		sb.WriteString("|role:")
		sb.WriteString(c.Role.String)
	}
	if c.ChampionID.Valid {
		sb.WriteString("|champion:")
		sb.WriteString(c.ChampionID.String)
	}
	if len(c.TeamPlayerIDs) > 0 {
		ids := append([]string(nil), c.TeamPlayerIDs...)
		sort.Strings(ids)
		sb.WriteString("|team:")
		sb.WriteString(strings.Join(ids, ","))
	}
	return sb.String()
}

// PlayerBaseline is the temporally-weighted average performance of one player
// in one context. Owned and mutated exclusively by the Baseline service.
type PlayerBaseline struct {
	PlayerID string          `json:"playerId"`
	Context  BaselineContext `json:"context"`

	Metrics PerformanceMetrics `json:"metrics"`

	// SampleSize is raw match count; EffectiveSampleSize is the decay-weighted
	// equivalent count, always <= SampleSize.
	SampleSize          int     `json:"sampleSize"`
	EffectiveSampleSize float64 `json:"effectiveSampleSize"`

	// WinRateInterval is a confidence interval on the context win rate.
	WinRateInterval ConfidenceInterval `json:"winRateInterval"`

	LowConfidence bool      `json:"lowConfidence"`
	ComputedAt    time.Time `json:"computedAt"`
}

// PerformanceDelta compares one metric's observed value against a baseline.
// Always derived; never cached independently of its parent result.
type PerformanceDelta struct {
	Metric      string  `json:"metric"`
	Actual      float64 `json:"actual"`
	Baseline    float64 `json:"baseline"`
	Absolute    float64 `json:"absolute"`
	Percent     float64 `json:"percent"`
	Percentile  float64 `json:"percentile"`
	Significant bool    `json:"significant"`
	// Significance is the p-value of the deviation test when computable.
	Significance float64 `json:"significance"`
}

// BaselineElement is the persisted snapshot of a baseline bucket, written
// only by the calc worker so restarts serve baselines without a full-history
// recompute. Idempotent batch writes: the worker deletes by (player, context)
// scope and reinserts within one transaction.
type BaselineElement struct {
	bun.BaseModel `bun:"table:baseline_elements,alias:be" json:"-"`

	ElementID  int64  `bun:",pk,autoincrement" json:"-"`
	PlayerID   string `json:"playerId"`
	ContextKey string `json:"contextKey"`

	WinRate           float64 `json:"winRate"`
	KDA               float64 `json:"kda"`
	CSPerMin          float64 `json:"csPerMin"`
	VisionPerMin      float64 `json:"visionPerMin"`
	DamagePerMin      float64 `json:"damagePerMin"`
	GoldPerMin        float64 `json:"goldPerMin"`
	KillParticipation float64 `json:"killParticipation"`

	SampleSize          int     `json:"sampleSize"`
	EffectiveSampleSize float64 `json:"effectiveSampleSize"`

	ComputedAt time.Time `json:"computedAt"`
}

func (e *BaselineElement) Metrics() PerformanceMetrics {
	return PerformanceMetrics{
		WinRate:           e.WinRate,
		KDA:               e.KDA,
		CSPerMin:          e.CSPerMin,
		VisionPerMin:      e.VisionPerMin,
		DamagePerMin:      e.DamagePerMin,
		GoldPerMin:        e.GoldPerMin,
		KillParticipation: e.KillParticipation,
		Games:             e.SampleSize,
	}
}

func NewBaselineElement(b *PlayerBaseline) *BaselineElement {
	return &BaselineElement{
		PlayerID:            b.PlayerID,
		ContextKey:          b.Context.Key(),
		WinRate:             b.Metrics.WinRate,
		KDA:                 b.Metrics.KDA,
		CSPerMin:            b.Metrics.CSPerMin,
		VisionPerMin:        b.Metrics.VisionPerMin,
		DamagePerMin:        b.Metrics.DamagePerMin,
		GoldPerMin:          b.Metrics.GoldPerMin,
		KillParticipation:   b.Metrics.KillParticipation,
		SampleSize:          b.SampleSize,
		EffectiveSampleSize: b.EffectiveSampleSize,
		ComputedAt:          b.ComputedAt,
	}
}
