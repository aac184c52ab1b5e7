package model

import (
	"sort"
	"strings"
)

// Assignment binds one player and one champion to one role.
type Assignment struct {
	Role       string `json:"role"`
	PlayerID   string `json:"playerId"`
	ChampionID string `json:"championId"`
}

// TeamComposition is a full role→(player, champion) assignment for one team.
// Immutable once constructed; built on demand from match records.
type TeamComposition struct {
	Assignments []Assignment `json:"assignments"`

	// MatchIDs are the historical matches where this exact assignment
	// occurred. Populated by the Composition service.
	MatchIDs []string `json:"matchIds,omitempty"`
}

// Key derives the composition identity: assignments ordered canonically by
// role, so two compositions with the same tuples always share a key.
func (c TeamComposition) Key() string {
	parts := make([]string, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		parts = append(parts, a.Role+"="+a.PlayerID+":"+a.ChampionID)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// PlayerIDs returns the distinct players of the composition.
func (c TeamComposition) PlayerIDs() []string {
	ids := make([]string, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		ids = append(ids, a.PlayerID)
	}
	return ids
}

// ChampionSet returns the champion ids as a membership set.
func (c TeamComposition) ChampionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Assignments))
	for _, a := range c.Assignments {
		set[a.ChampionID] = struct{}{}
	}
	return set
}

// CompositionPerformance is the historical outcome of one composition,
// cached by composition key and analysis window.
type CompositionPerformance struct {
	Key     string  `json:"key"`
	Games   int     `json:"games"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"winRate"`

	AvgDurationSeconds float64 `json:"avgDurationSeconds"`

	// PlayerDeltas maps player id to that player's deltas versus their
	// individual baseline within this composition.
	PlayerDeltas map[string][]PerformanceDelta `json:"playerDeltas"`

	// Significance tests the team result against the sum-of-individual-
	// baselines expectation.
	Significance SignificanceTest `json:"significance"`

	LowConfidence bool `json:"lowConfidence"`
}

// SimilarComposition pairs a historical composition with its similarity to
// the queried one, in [0,1].
type SimilarComposition struct {
	Composition TeamComposition `json:"composition"`
	Similarity  float64         `json:"similarity"`
	Games       int             `json:"games"`
}

// SynergyEffect is observed minus expected team performance for one metric.
// Positive synergy flags a beneficial pairing.
type SynergyEffect struct {
	Metric       string           `json:"metric"`
	Expected     float64          `json:"expected"`
	Observed     float64          `json:"observed"`
	Synergy      float64          `json:"synergy"`
	Significance SignificanceTest `json:"significance"`
}

// ScoredComposition is one candidate from optimal-composition search.
type ScoredComposition struct {
	Composition TeamComposition `json:"composition"`
	Score       float64         `json:"score"`
	WinRate     float64         `json:"winRate"`
	Synergy     float64         `json:"synergy"`
	Games       int             `json:"games"`
}

// CompositionConstraints restricts optimal-composition search.
type CompositionConstraints struct {
	// RequiredRoles defaults to all five roles when empty.
	RequiredRoles []string `json:"requiredRoles,omitempty"`

	// ChampionPool restricts champion choices per player. Missing players
	// are unrestricted.
	ChampionPool map[string][]string `json:"championPool,omitempty"`

	// LockedAssignments pins players to roles.
	LockedAssignments map[string]string `json:"lockedAssignments,omitempty"`

	// MaxResults bounds the ranked list; zero means the service default.
	MaxResults int `json:"maxResults,omitempty"`
}
