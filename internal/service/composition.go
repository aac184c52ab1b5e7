package service

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/riftstats/backend-next/internal/app/appconfig"
	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
	modelcache "github.com/riftstats/backend-next/internal/model/cache"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
	"github.com/riftstats/backend-next/internal/repo"
)

const (
	compositionCacheExpire = 30 * time.Minute

	// defaultSimilarityThreshold filters similar-composition results when the
	// caller passes no threshold.
	defaultSimilarityThreshold = 0.8

	defaultOptimalResults = 10

	// similarityTemporalScaleDays controls how fast temporal proximity decays
	// with the gap between two compositions' windows.
	similarityTemporalScaleDays = 30.0
)

// Similarity blend weights over champion Jaccard, per-role champion match,
// player overlap and temporal proximity.
const (
	similarityChampionWeight = 0.4
	similarityRoleWeight     = 0.3
	similarityPlayerWeight   = 0.2
	similarityTemporalWeight = 0.1
)

// Composition analyzes team compositions: historical performance of exact
// assignments, similarity matching to broaden thin samples, synergy versus
// individual baselines and constrained optimal-composition search.
type Composition struct {
	MatchRepo       MatchSource
	BaselineService *Baseline
	StatService     *Stat

	MinSampleSize int

	Clock func() time.Time
}

func NewComposition(conf *appconfig.Config, matchRepo *repo.Match, baselineService *Baseline, statService *Stat) *Composition {
	return &Composition{
		MatchRepo:       matchRepo,
		BaselineService: baselineService,
		StatService:     statService,
		MinSampleSize:   conf.MinSampleSize,
		Clock:           time.Now,
	}
}

// AnalyzeCompositionPerformance computes the historical outcome of the exact
// composition: win rate, average duration, per-player deltas versus their
// individual baselines, and a significance test of the team result against
// the pooled individual expectation.
func (s *Composition) AnalyzeCompositionPerformance(ctx context.Context, comp *model.TeamComposition) (*model.CompositionPerformance, error) {
	if err := validateComposition(comp); err != nil {
		return nil, err
	}

	key := comp.Key() + "|all"
	var performance model.CompositionPerformance
	_, err := modelcache.CompositionPerformance.MutexGetSet(key, &performance, func() (model.CompositionPerformance, error) {
		calculated, err := s.calcCompositionPerformance(ctx, comp)
		if err != nil {
			return model.CompositionPerformance{}, err
		}
		return *calculated, nil
	}, compositionCacheExpire)
	if err != nil {
		return nil, err
	}
	return &performance, nil
}

func (s *Composition) calcCompositionPerformance(ctx context.Context, comp *model.TeamComposition) (*model.CompositionPerformance, error) {
	matchIds, err := s.MatchRepo.GetMatchIDsByComposition(ctx, comp)
	if err != nil {
		return nil, err
	}
	if len(matchIds) == 0 {
		return nil, rserr.NewInsufficientData(1, 0)
	}

	records, err := s.MatchRepo.GetMatchesByMatchIDs(ctx, matchIds, comp.PlayerIDs())
	if err != nil {
		return nil, err
	}

	performance := &model.CompositionPerformance{
		Key:          comp.Key(),
		Games:        len(matchIds),
		PlayerDeltas: make(map[string][]model.PerformanceDelta),
	}

	byMatch := lo.GroupBy(records, func(r *model.MatchRecord) string { return r.MatchID })
	var durationSum float64
	compWins := make([]float64, 0, len(byMatch))
	for _, matchRecords := range byMatch {
		r := matchRecords[0]
		win := 0.0
		if r.Win {
			performance.Wins++
			win = 1
		}
		compWins = append(compWins, win)
		durationSum += float64(r.DurationSeconds)
	}
	if len(byMatch) > 0 {
		performance.WinRate = float64(performance.Wins) / float64(len(byMatch))
		performance.AvgDurationSeconds = durationSum / float64(len(byMatch))
	}
	performance.LowConfidence = performance.Games < s.MinSampleSize

	byPlayer := lo.GroupBy(records, func(r *model.MatchRecord) string { return r.PlayerID })
	overallWins := make([]float64, 0, len(byPlayer)*8)
	for playerId, playerRecords := range byPlayer {
		metrics := aggregateMetrics(playerRecords)
		deltas, err := s.BaselineService.PerformanceDeltas(ctx, playerId, model.BaselineContext{Kind: constant.ContextOverall}, metrics)
		if err == nil {
			performance.PlayerDeltas[playerId] = deltas
		} else if !rserr.IsInsufficientData(err) {
			return nil, err
		}

		history, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range history {
			if r.Win {
				overallWins = append(overallWins, 1)
			} else {
				overallWins = append(overallWins, 0)
			}
		}
	}

	// team result versus the pooled individual expectation
	if test, err := s.StatService.SignificanceTest(compWins, overallWins); err == nil {
		performance.Significance = *test
	}

	return performance, nil
}

// FindSimilarCompositions matches historical compositions of the same
// players against the query. Similarity blends champion-set Jaccard, per-role
// champion agreement, player overlap and temporal proximity; results at or
// above threshold come back sorted by descending similarity.
func (s *Composition) FindSimilarCompositions(ctx context.Context, comp *model.TeamComposition, threshold float64) ([]model.SimilarComposition, error) {
	if err := validateComposition(comp); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = defaultSimilarityThreshold
	}
	if threshold > 1 {
		return nil, rserr.ErrInvalidReq.Msg("similarity threshold must be at most 1, got %f", threshold)
	}

	key := fmt.Sprintf("%s|%.2f", comp.Key(), threshold)
	var similar []model.SimilarComposition
	_, err := modelcache.SimilarCompositions.MutexGetSet(key, &similar, func() ([]model.SimilarComposition, error) {
		return s.calcSimilarCompositions(ctx, comp, threshold)
	}, compositionCacheExpire)
	if err != nil {
		return nil, err
	}
	return similar, nil
}

type historicalComposition struct {
	comp       model.TeamComposition
	games      int
	lastPlayed time.Time
}

func (s *Composition) calcSimilarCompositions(ctx context.Context, comp *model.TeamComposition, threshold float64) ([]model.SimilarComposition, error) {
	candidates, err := s.historicalCompositions(ctx, comp.PlayerIDs())
	if err != nil {
		return nil, err
	}

	now := s.Clock()
	queryKey := comp.Key()

	similar := make([]model.SimilarComposition, 0)
	for _, candidate := range candidates {
		if candidate.comp.Key() == queryKey {
			continue
		}
		sim := compositionSimilarity(comp, &candidate.comp, now, candidate.lastPlayed)
		if sim >= threshold {
			similar = append(similar, model.SimilarComposition{
				Composition: candidate.comp,
				Similarity:  sim,
				Games:       candidate.games,
			})
		}
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Similarity > similar[j].Similarity
	})
	return similar, nil
}

// historicalCompositions reconstructs every distinct composition the given
// players appeared in together, from their bounded match histories.
func (s *Composition) historicalCompositions(ctx context.Context, playerIds []string) ([]*historicalComposition, error) {
	byMatch := make(map[string][]*model.MatchRecord)
	for _, playerId := range lo.Uniq(playerIds) {
		records, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			byMatch[r.MatchID] = append(byMatch[r.MatchID], r)
		}
	}

	distinct := make(map[string]*historicalComposition)
	for _, records := range byMatch {
		seen := make(map[string]struct{}, len(records))
		candidate := model.TeamComposition{}
		playedAt := time.Time{}
		for _, r := range records {
			if _, ok := seen[r.PlayerID]; ok {
				continue
			}
			seen[r.PlayerID] = struct{}{}
			candidate.Assignments = append(candidate.Assignments, model.Assignment{
				Role:       r.Role,
				PlayerID:   r.PlayerID,
				ChampionID: r.ChampionID,
			})
			if r.PlayedAt.After(playedAt) {
				playedAt = r.PlayedAt
			}
		}

		key := candidate.Key()
		if existing, ok := distinct[key]; ok {
			existing.games++
			if playedAt.After(existing.lastPlayed) {
				existing.lastPlayed = playedAt
			}
			continue
		}
		distinct[key] = &historicalComposition{
			comp:       candidate,
			games:      1,
			lastPlayed: playedAt,
		}
	}

	return lo.Values(distinct), nil
}

// compositionSimilarity is symmetric in its composition arguments and 1.0
// for a composition compared with itself at the same point in time.
func compositionSimilarity(a, b *model.TeamComposition, timeA, timeB time.Time) float64 {
	championJaccard := jaccard(a.ChampionSet(), b.ChampionSet())

	roleChampionsA := roleChampionMap(a)
	roleChampionsB := roleChampionMap(b)
	roleMatches := 0
	roleUnion := make(map[string]struct{})
	for role := range roleChampionsA {
		roleUnion[role] = struct{}{}
	}
	for role := range roleChampionsB {
		roleUnion[role] = struct{}{}
	}
	for role := range roleUnion {
		if roleChampionsA[role] != "" && roleChampionsA[role] == roleChampionsB[role] {
			roleMatches++
		}
	}
	roleMatch := 0.0
	if len(roleUnion) > 0 {
		roleMatch = float64(roleMatches) / float64(len(roleUnion))
	}

	playerOverlap := jaccard(
		lo.SliceToMap(a.PlayerIDs(), func(id string) (string, struct{}) { return id, struct{}{} }),
		lo.SliceToMap(b.PlayerIDs(), func(id string) (string, struct{}) { return id, struct{}{} }),
	)

	days := math.Abs(timeA.Sub(timeB).Hours()) / 24
	temporal := math.Exp(-days / similarityTemporalScaleDays)

	return similarityChampionWeight*championJaccard +
		similarityRoleWeight*roleMatch +
		similarityPlayerWeight*playerOverlap +
		similarityTemporalWeight*temporal
}

// SynergyEffects measures observed team performance per metric against the
// expectation from the players' individual overall baselines, with a
// significance test guarding against small-sample false positives.
func (s *Composition) SynergyEffects(ctx context.Context, comp *model.TeamComposition) ([]model.SynergyEffect, error) {
	if err := validateComposition(comp); err != nil {
		return nil, err
	}

	matchIds, err := s.MatchRepo.GetMatchIDsByComposition(ctx, comp)
	if err != nil {
		return nil, err
	}
	if len(matchIds) == 0 {
		return nil, rserr.NewInsufficientData(1, 0)
	}
	records, err := s.MatchRepo.GetMatchesByMatchIDs(ctx, matchIds, comp.PlayerIDs())
	if err != nil {
		return nil, err
	}

	// pooled per-record history of every participant, the expectation sample
	pooled := make([]*model.MatchRecord, 0)
	expected := make([]model.PerformanceMetrics, 0, len(comp.Assignments))
	for _, playerId := range comp.PlayerIDs() {
		baseline, err := s.BaselineService.PlayerBaseline(ctx, playerId, model.BaselineContext{Kind: constant.ContextOverall})
		if err != nil {
			if rserr.IsInsufficientData(err) {
				continue
			}
			return nil, err
		}
		expected = append(expected, baseline.Metrics)

		history, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
		if err != nil {
			return nil, err
		}
		pooled = append(pooled, history...)
	}
	if len(expected) == 0 {
		return nil, rserr.NewInsufficientData(1, 0)
	}

	observed := aggregateMetrics(records)

	effects := make([]model.SynergyEffect, 0, len(model.MetricNames))
	for _, name := range model.MetricNames {
		expectedValue := lo.SumBy(expected, func(m model.PerformanceMetrics) float64 {
			return m.Metric(name)
		}) / float64(len(expected))

		effect := model.SynergyEffect{
			Metric:   name,
			Expected: expectedValue,
			Observed: observed.Metric(name),
		}
		effect.Synergy = effect.Observed - effect.Expected

		observedSeries := perRecordSeries(records, name)
		pooledSeries := perRecordSeries(pooled, name)
		if test, err := s.StatService.SignificanceTest(observedSeries, pooledSeries); err == nil {
			effect.Significance = *test
		}

		effects = append(effects, effect)
	}
	return effects, nil
}

// IdentifyOptimalCompositions searches role-feasible assignments of the pool
// under the constraints and returns a ranked list. The search is incremental
// best-first over per-role candidate options with an optimistic bound, capped
// by a node budget, so large pools never trigger a full permutation sweep.
// Cancellation via ctx aborts the search and returns what was found.
func (s *Composition) IdentifyOptimalCompositions(ctx context.Context, playerPool []string, constraints *model.CompositionConstraints) ([]model.ScoredComposition, error) {
	if constraints == nil {
		constraints = &model.CompositionConstraints{}
	}
	roles := constraints.RequiredRoles
	if len(roles) == 0 {
		roles = constant.Roles
	}
	for _, role := range roles {
		if !constant.ValidRole(role) {
			return nil, rserr.ErrInvalidReq.Msg("invalid role in constraints: %s", role)
		}
	}
	playerPool = lo.Uniq(playerPool)
	if len(playerPool) < len(roles) {
		return nil, rserr.ErrInvalidReq.Msg("player pool of %d cannot cover %d roles", len(playerPool), len(roles))
	}
	for playerId, role := range constraints.LockedAssignments {
		if !lo.Contains(playerPool, playerId) {
			return nil, rserr.ErrInvalidReq.Msg("locked player %s is not in the pool", playerId)
		}
		if !lo.Contains(roles, role) {
			return nil, rserr.ErrInvalidReq.Msg("locked role %s is not required", role)
		}
	}

	options, maxOptionValue, err := s.roleOptions(ctx, playerPool, roles, constraints)
	if err != nil {
		return nil, err
	}

	maxResults := constraints.MaxResults
	if maxResults <= 0 {
		maxResults = defaultOptimalResults
	}

	complete := s.bestFirstSearch(ctx, roles, options, maxOptionValue, maxResults)
	if len(complete) == 0 {
		return nil, rserr.NewInsufficientData(1, 0)
	}

	scored := make([]model.ScoredComposition, 0, len(complete))
	for _, node := range complete {
		comp := model.TeamComposition{Assignments: node.assignments}
		entry := model.ScoredComposition{
			Composition: comp,
			Score:       node.score / float64(len(roles)),
			WinRate:     node.winRateSum / float64(len(roles)),
		}

		// enrich with the exact historical record where one exists
		if matchIds, err := s.MatchRepo.GetMatchIDsByComposition(ctx, &comp); err == nil && len(matchIds) > 0 {
			entry.Games = len(matchIds)
			if records, err := s.MatchRepo.GetMatchesByMatchIDs(ctx, matchIds, comp.PlayerIDs()); err == nil {
				byMatch := lo.GroupBy(records, func(r *model.MatchRecord) string { return r.MatchID })
				wins := 0
				for _, matchRecords := range byMatch {
					if matchRecords[0].Win {
						wins++
					}
				}
				observed := float64(wins) / float64(len(byMatch))
				entry.Synergy = observed - entry.WinRate
				entry.WinRate = observed
			}
		}
		scored = append(scored, entry)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score+scored[i].Synergy > scored[j].Score+scored[j].Synergy
	})
	if len(scored) > maxResults {
		scored = scored[:maxResults]
	}
	return scored, nil
}

// roleOption is one (player, champion) candidate for a role, valued by a
// shrunk historical win rate so thin buckets regress toward even odds.
type roleOption struct {
	playerId   string
	championId string
	games      int
	value      float64
	winRate    float64
}

func (s *Composition) roleOptions(ctx context.Context, playerPool, roles []string, constraints *model.CompositionConstraints) (map[string][]roleOption, float64, error) {
	type bucket struct {
		games int
		wins  int
	}

	options := make(map[string][]roleOption, len(roles))
	maxValue := 0.0

	for _, playerId := range playerPool {
		records, err := s.MatchRepo.GetMatchesByPlayer(ctx, playerId, nil)
		if err != nil {
			return nil, 0, err
		}

		buckets := make(map[string]map[string]*bucket)
		for _, r := range records {
			if _, ok := buckets[r.Role]; !ok {
				buckets[r.Role] = make(map[string]*bucket)
			}
			b, ok := buckets[r.Role][r.ChampionID]
			if !ok {
				b = &bucket{}
				buckets[r.Role][r.ChampionID] = b
			}
			b.games++
			if r.Win {
				b.wins++
			}
		}

		pool, restricted := constraints.ChampionPool[playerId]
		lockedRole, locked := constraints.LockedAssignments[playerId]

		for _, role := range roles {
			if locked && lockedRole != role {
				continue
			}

			champions := buckets[role]
			for championId, b := range champions {
				if restricted && !lo.Contains(pool, championId) {
					continue
				}
				winRate := float64(b.wins) / float64(b.games)
				option := roleOption{
					playerId:   playerId,
					championId: championId,
					games:      b.games,
					winRate:    winRate,
					// Laplace-style shrinkage toward 0.5 for thin buckets
					value: (float64(b.wins) + 2) / (float64(b.games) + 4),
				}
				options[role] = append(options[role], option)
				if option.value > maxValue {
					maxValue = option.value
				}
			}

			// pool-restricted champions without history still qualify at the
			// uninformative prior
			if restricted {
				for _, championId := range pool {
					if _, ok := champions[championId]; ok {
						continue
					}
					options[role] = append(options[role], roleOption{
						playerId:   playerId,
						championId: championId,
						value:      0.5,
						winRate:    0.5,
					})
					if maxValue < 0.5 {
						maxValue = 0.5
					}
				}
			}
		}
	}

	for _, role := range roles {
		sort.SliceStable(options[role], func(i, j int) bool {
			return options[role][i].value > options[role][j].value
		})
	}
	return options, maxValue, nil
}

type searchNode struct {
	roleIdx     int
	assignments []model.Assignment
	score       float64
	winRateSum  float64
	bound       float64
}

type searchQueue []*searchNode

func (q searchQueue) Len() int            { return len(q) }
func (q searchQueue) Less(i, j int) bool  { return q[i].bound > q[j].bound }
func (q searchQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *searchQueue) Push(x interface{}) { *q = append(*q, x.(*searchNode)) }
func (q *searchQueue) Pop() interface{} {
	old := *q
	n := len(old)
	node := old[n-1]
	*q = old[:n-1]
	return node
}

// bestFirstSearch expands assignment prefixes in descending optimistic-bound
// order until enough complete compositions are found or the node budget runs
// out. The bound assumes every unfilled role gets the best option available,
// so no better composition is ever discarded before the budget trips.
func (s *Composition) bestFirstSearch(ctx context.Context, roles []string, options map[string][]roleOption, maxOptionValue float64, maxResults int) []*searchNode {
	queue := &searchQueue{}
	heap.Init(queue)
	heap.Push(queue, &searchNode{
		bound: maxOptionValue * float64(len(roles)),
	})

	complete := make([]*searchNode, 0, maxResults)
	expanded := 0
	for queue.Len() > 0 && expanded < constant.OptimalCompositionSearchLimit {
		if ctx.Err() != nil {
			break
		}
		node := heap.Pop(queue).(*searchNode)
		expanded++

		if node.roleIdx == len(roles) {
			complete = append(complete, node)
			if len(complete) >= maxResults {
				break
			}
			continue
		}

		role := roles[node.roleIdx]
		remaining := float64(len(roles)-node.roleIdx-1) * maxOptionValue
		for _, option := range options[role] {
			taken := lo.ContainsBy(node.assignments, func(a model.Assignment) bool {
				return a.PlayerID == option.playerId
			})
			if taken {
				continue
			}

			assignments := make([]model.Assignment, len(node.assignments), len(node.assignments)+1)
			copy(assignments, node.assignments)
			assignments = append(assignments, model.Assignment{
				Role:       role,
				PlayerID:   option.playerId,
				ChampionID: option.championId,
			})

			child := &searchNode{
				roleIdx:     node.roleIdx + 1,
				assignments: assignments,
				score:       node.score + option.value,
				winRateSum:  node.winRateSum + option.winRate,
			}
			child.bound = child.score + remaining
			heap.Push(queue, child)
		}
	}
	return complete
}

func validateComposition(comp *model.TeamComposition) error {
	if comp == nil || len(comp.Assignments) == 0 {
		return rserr.ErrInvalidReq.Msg("composition requires at least one assignment")
	}

	seenRoles := make(map[string]struct{}, len(comp.Assignments))
	seenPlayers := make(map[string]struct{}, len(comp.Assignments))
	for _, a := range comp.Assignments {
		if !constant.ValidRole(a.Role) {
			return rserr.ErrInvalidReq.Msg("invalid role: %s", a.Role)
		}
		if a.PlayerID == "" || a.ChampionID == "" {
			return rserr.ErrInvalidReq.Msg("assignment requires both player and champion")
		}
		if _, ok := seenRoles[a.Role]; ok {
			return rserr.ErrInvalidReq.Msg("duplicate role in composition: %s", a.Role)
		}
		if _, ok := seenPlayers[a.PlayerID]; ok {
			return rserr.ErrInvalidReq.Msg("duplicate player in composition: %s", a.PlayerID)
		}
		seenRoles[a.Role] = struct{}{}
		seenPlayers[a.PlayerID] = struct{}{}
	}
	return nil
}

func roleChampionMap(comp *model.TeamComposition) map[string]string {
	m := make(map[string]string, len(comp.Assignments))
	for _, a := range comp.Assignments {
		m[a.Role] = a.ChampionID
	}
	return m
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

func perRecordSeries(records []*model.MatchRecord, metric string) []float64 {
	return lo.Map(records, func(r *model.MatchRecord, _ int) float64 {
		return model.MetricsFromMatch(r).Metric(metric)
	})
}
