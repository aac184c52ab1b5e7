package model

// FactorScore is one factor's contribution to a composite recommendation
// score, kept for presentation of the per-factor breakdown.
type FactorScore struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// Recommendation is one candidate option with its composite score. Transient:
// produced fresh per request, optionally cache-backed.
type Recommendation struct {
	ChampionID string `json:"championId"`
	Role       string `json:"role"`

	Score      float64       `json:"score"`
	Factors    []FactorScore `json:"factors"`
	Confidence float64       `json:"confidence"`
	SampleSize int           `json:"sampleSize"`

	// Justification orders the factors by contribution in plain language.
	Justification string `json:"justification"`
}

// RecommendationResult is the ranked output of one recommend call. An empty
// list with Flagged=true is a normal outcome (no candidate met the confidence
// floor), distinct from a computation failure.
type RecommendationResult struct {
	PlayerID        string           `json:"playerId"`
	Role            string           `json:"role"`
	Strategy        string           `json:"strategy"`
	Recommendations []Recommendation `json:"recommendations"`

	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason,omitempty"`

	// WeightsNormalized reports that the supplied weights did not sum to 1
	// and were re-normalized.
	WeightsNormalized bool `json:"weightsNormalized,omitempty"`
}

// TeamContext carries the already-locked teammates of the request.
type TeamContext struct {
	Assignments []Assignment `json:"assignments"`
}
