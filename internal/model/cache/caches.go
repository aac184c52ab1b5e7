package cache

import (
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/riftstats/backend-next/internal/model"
	"github.com/riftstats/backend-next/internal/pkg/cache"
)

type Flusher func() error

var (
	PlayerBaseline    *cache.Set[model.PlayerBaseline]
	PlayerAnalytics   *cache.Set[model.PlayerAnalytics]
	ChampionAnalytics *cache.Set[model.ChampionAnalytics]
	PerformanceTrends *cache.Set[model.PerformanceTrends]

	CompositionPerformance *cache.Set[model.CompositionPerformance]
	SimilarCompositions    *cache.Set[[]model.SimilarComposition]

	Recommendations *cache.Set[model.RecommendationResult]

	LastModifiedTime *cache.Set[time.Time]

	once sync.Once

	SetMap map[string]Flusher

	// playerScoped holds every flusher that accepts a playerId prefix, used
	// by InvalidatePlayer on new-match ingestion.
	playerScoped []func(prefix string) error
)

func Initialize(client *redis.Client) {
	once.Do(func() {
		cache.Populate(client)
		initializeCaches()
	})
}

// Flush invalidates one named cache entirely. Unknown names are a no-op.
func Flush(name string) error {
	if flusher, ok := SetMap[name]; ok {
		return flusher()
	}
	return nil
}

// FlushAll invalidates every registered cache.
func FlushAll() error {
	for _, flusher := range SetMap {
		if err := flusher(); err != nil {
			return err
		}
	}
	return nil
}

// InvalidatePlayer drops every cached result scoped to the given player.
// Triggered by new-match ingestion and baseline recomputation.
func InvalidatePlayer(playerId string) error {
	for _, del := range playerScoped {
		if err := del(playerId + "|"); err != nil {
			return err
		}
	}
	return nil
}

func initializeCaches() {
	SetMap = make(map[string]Flusher)

	// baseline
	PlayerBaseline = cache.NewSet[model.PlayerBaseline]("playerBaseline#playerId|contextKey")
	SetMap["playerBaseline#playerId|contextKey"] = PlayerBaseline.Flush
	playerScoped = append(playerScoped, PlayerBaseline.DeletePrefix)

	// analytics
	PlayerAnalytics = cache.NewSet[model.PlayerAnalytics]("playerAnalytics#playerId|filter")
	ChampionAnalytics = cache.NewSet[model.ChampionAnalytics]("championAnalytics#playerId|championId|role")
	PerformanceTrends = cache.NewSet[model.PerformanceTrends]("performanceTrends#playerId|metric|windowDays")

	SetMap["playerAnalytics#playerId|filter"] = PlayerAnalytics.Flush
	SetMap["championAnalytics#playerId|championId|role"] = ChampionAnalytics.Flush
	SetMap["performanceTrends#playerId|metric|windowDays"] = PerformanceTrends.Flush
	playerScoped = append(playerScoped,
		PlayerAnalytics.DeletePrefix,
		ChampionAnalytics.DeletePrefix,
		PerformanceTrends.DeletePrefix,
	)

	// composition
	CompositionPerformance = cache.NewSet[model.CompositionPerformance]("compositionPerformance#key|window")
	SimilarCompositions = cache.NewSet[[]model.SimilarComposition]("similarCompositions#key|threshold")

	SetMap["compositionPerformance#key|window"] = CompositionPerformance.Flush
	SetMap["similarCompositions#key|threshold"] = SimilarCompositions.Flush

	// recommendation
	Recommendations = cache.NewSet[model.RecommendationResult]("recommendations#playerId|role|team")
	SetMap["recommendations#playerId|role|team"] = Recommendations.Flush
	playerScoped = append(playerScoped, Recommendations.DeletePrefix)

	// others
	LastModifiedTime = cache.NewSet[time.Time]("lastModifiedTime#key")
	SetMap["lastModifiedTime#key"] = LastModifiedTime.Flush
}
