package model

// Metric names used for deltas, comparisons and trend selection.
const (
	MetricWinRate           = "winRate"
	MetricKDA               = "kda"
	MetricCSPerMin          = "csPerMin"
	MetricVisionPerMin      = "visionPerMin"
	MetricDamagePerMin      = "damagePerMin"
	MetricGoldPerMin        = "goldPerMin"
	MetricKillParticipation = "killParticipation"
)

var MetricNames = []string{
	MetricWinRate,
	MetricKDA,
	MetricCSPerMin,
	MetricVisionPerMin,
	MetricDamagePerMin,
	MetricGoldPerMin,
	MetricKillParticipation,
}

// PerformanceMetrics holds normalized per-minute rates computed from one or
// more match records. Derived on demand, never persisted standalone.
type PerformanceMetrics struct {
	WinRate           float64 `json:"winRate"`
	KDA               float64 `json:"kda"`
	CSPerMin          float64 `json:"csPerMin"`
	VisionPerMin      float64 `json:"visionPerMin"`
	DamagePerMin      float64 `json:"damagePerMin"`
	GoldPerMin        float64 `json:"goldPerMin"`
	KillParticipation float64 `json:"killParticipation"`

	// Games is the sample size behind the aggregate. Every aggregate metric
	// carries it; consumers must not treat a metric as reliable below the
	// configured minimum without an explicit low-confidence flag.
	Games int `json:"games"`
}

// Metric returns the named metric value.
func (m PerformanceMetrics) Metric(name string) float64 {
	switch name {
	case MetricWinRate:
		return m.WinRate
	case MetricKDA:
		return m.KDA
	case MetricCSPerMin:
		return m.CSPerMin
	case MetricVisionPerMin:
		return m.VisionPerMin
	case MetricDamagePerMin:
		return m.DamagePerMin
	case MetricGoldPerMin:
		return m.GoldPerMin
	case MetricKillParticipation:
		return m.KillParticipation
	}
	return 0
}

// MetricsFromMatch computes the normalized rates of a single record.
func MetricsFromMatch(r *MatchRecord) PerformanceMetrics {
	minutes := float64(r.DurationSeconds) / 60
	if minutes <= 0 {
		minutes = 1
	}

	deaths := float64(r.Deaths)
	if deaths == 0 {
		// perfect games count deaths as one for KDA, the common convention
		deaths = 1
	}

	kp := 0.0
	if r.TeamKills > 0 {
		kp = float64(r.Kills+r.Assists) / float64(r.TeamKills)
		if kp > 1 {
			kp = 1
		}
	}

	winRate := 0.0
	if r.Win {
		winRate = 1
	}

	return PerformanceMetrics{
		WinRate:           winRate,
		KDA:               (float64(r.Kills) + float64(r.Assists)) / deaths,
		CSPerMin:          float64(r.CreepScore) / minutes,
		VisionPerMin:      float64(r.VisionScore) / minutes,
		DamagePerMin:      float64(r.DamageDealt) / minutes,
		GoldPerMin:        float64(r.GoldEarned) / minutes,
		KillParticipation: kp,
		Games:             1,
	}
}

// WeightedAverageMetrics aggregates per-match metrics under the given weights.
// Weights and metrics must be parallel; a uniform weight vector reduces this
// to the unweighted mean.
func WeightedAverageMetrics(metrics []PerformanceMetrics, weights []float64) PerformanceMetrics {
	var out PerformanceMetrics
	if len(metrics) == 0 || len(metrics) != len(weights) {
		return out
	}

	var totalWeight float64
	for i, m := range metrics {
		w := weights[i]
		totalWeight += w
		out.WinRate += w * m.WinRate
		out.KDA += w * m.KDA
		out.CSPerMin += w * m.CSPerMin
		out.VisionPerMin += w * m.VisionPerMin
		out.DamagePerMin += w * m.DamagePerMin
		out.GoldPerMin += w * m.GoldPerMin
		out.KillParticipation += w * m.KillParticipation
	}
	if totalWeight == 0 {
		return PerformanceMetrics{}
	}

	out.WinRate /= totalWeight
	out.KDA /= totalWeight
	out.CSPerMin /= totalWeight
	out.VisionPerMin /= totalWeight
	out.DamagePerMin /= totalWeight
	out.GoldPerMin /= totalWeight
	out.KillParticipation /= totalWeight
	out.Games = len(metrics)
	return out
}
