package constant

import "time"

// Baseline context kinds. A context scopes which matches feed a baseline.
const (
	ContextOverall  = "overall"
	ContextRole     = "role"
	ContextChampion = "champion"
	ContextTeam     = "team"
)

// Statistical method identifiers, reported alongside results so callers can
// see which estimator produced a number.
const (
	MethodZScore    = "z"
	MethodTDist     = "t"
	MethodBootstrap = "bootstrap"

	MethodWelchT      = "welch-t"
	MethodMannWhitney = "mann-whitney-u"
	MethodChiSquare   = "chi-square"

	MethodIQR        = "iqr"
	MethodZScoreOut  = "z-score"
	MethodModifiedZ  = "modified-z"
	MethodPearson    = "pearson"
	MethodSpearman   = "spearman"
	MethodSegmented  = "segmented"
)

// Trend direction classification.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Recommendation strategy presets. Presets only vary the weight vector.
const (
	StrategyBalanced     = "balanced"
	StrategyConservative = "conservative"
	StrategyHighVariance = "high-variance"
	StrategyCounter      = "counter"
)

// Recommendation factor names. The registry in service.Recommend iterates
// registered factors by these names.
const (
	FactorIndividual = "individual"
	FactorSynergy    = "synergy"
	FactorRecentForm = "recent_form"
	FactorMeta       = "meta"
	FactorConfidence = "confidence"
)

const (
	// DefaultNormalSampleSize is the cutoff above which the normal
	// approximation replaces the t-distribution for interval estimation.
	DefaultNormalSampleSize = 30

	// BootstrapResamples bounds the resampling effort of the bootstrap CI.
	BootstrapResamples = 1000

	// DefaultTrendWindow is the rolling window used by performance trends
	// when the caller does not supply one.
	DefaultTrendWindow = 7 * 24 * time.Hour

	// OptimalCompositionSearchLimit caps how many assignment nodes the
	// best-first search may expand before returning the best found so far.
	OptimalCompositionSearchLimit = 20000
)
