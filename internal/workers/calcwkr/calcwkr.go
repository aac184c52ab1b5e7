package calcwkr

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	linq "github.com/ahmetb/go-linq/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"github.com/riftstats/backend-next/internal/app/appconfig"
	"github.com/riftstats/backend-next/internal/model"
	modelcache "github.com/riftstats/backend-next/internal/model/cache"
	"github.com/riftstats/backend-next/internal/pkg/cache"
	"github.com/riftstats/backend-next/internal/repo"
	"github.com/riftstats/backend-next/internal/service"
)

// rosterCacheExpire keeps roster scans off the hot loop: the roster changes
// far less often than baselines are refreshed.
const rosterCacheExpire = 30 * time.Minute

type WorkerDeps struct {
	fx.In
	PlayerRepo      *repo.Player
	BaselineService *service.Baseline
}

type Worker struct {
	// count counts batches the worker has completed so far
	count int64

	// processed counts players refreshed within the current batch
	processed int64

	// sep describes the separation time in-between different microtasks
	sep time.Duration

	// interval describes the interval in-between different batches
	interval time.Duration

	// timeout bounds a single batch
	timeout time.Duration

	heartbeatURL string

	roster *cache.Singular[[]*model.Player]

	// deps
	WorkerDeps
}

func Start(conf *appconfig.Config, deps WorkerDeps) {
	if !conf.WorkerEnabled {
		log.Info().Msg("worker: not enabled, skipping")
		return
	}
	(&Worker{
		sep:          conf.WorkerSeparation,
		interval:     conf.WorkerInterval,
		timeout:      conf.WorkerTimeout,
		heartbeatURL: conf.WorkerHeartbeatURL["main"],
		roster:       cache.NewSingular[[]*model.Player]("calcwkr#roster"),
		WorkerDeps:   deps,
	}).do()
}

func (w *Worker) do() context.CancelFunc {
	parent, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			if parent.Err() != nil {
				return
			}

			log.Info().Int64("count", w.Count()).Msg("worker batch started")

			if err := w.batch(parent); err != nil {
				log.Error().Err(err).Msg("worker batch failed")
			} else {
				log.Info().Int64("count", w.Count()).Msg("worker batch finished")
				w.heartbeat()
			}

			atomic.AddInt64(&w.count, 1)
			time.Sleep(w.interval)
		}
	}()

	return cancel
}

// batch refreshes every roster player's baselines. Cancellation or a batch
// timeout stops between players, never mid-write: baseline persistence is a
// single transaction per player, so interrupted batches leave the previous
// snapshots intact.
func (w *Worker) batch(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	var players []*model.Player
	err := w.roster.MutexGetSet(&players, func() ([]*model.Player, error) {
		return w.PlayerRepo.GetPlayers(ctx)
	}, rosterCacheExpire)
	if err != nil {
		return err
	}

	var ordered []*model.Player
	linq.From(players).
		OrderByT(func(p *model.Player) string { return p.PlayerID }).
		ToSlice(&ordered)

	atomic.StoreInt64(&w.processed, 0)
	for i, player := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}

		playerId := player.PlayerID
		log.Info().
			Str("playerId", playerId).
			Int("progress", i+1).
			Int("total", len(ordered)).
			Msg("worker refreshing baselines")

		err := observeCalcDuration("baseline", func() error {
			return w.BaselineService.UpdateBaselines(ctx, playerId)
		})
		if err != nil {
			log.Error().Err(err).Str("playerId", playerId).Msg("worker failed to refresh baselines")
			continue
		}

		atomic.AddInt64(&w.processed, 1)
		time.Sleep(w.sep)
	}

	if err := modelcache.LastModifiedTime.Set("[baselines]", time.Now(), 0); err != nil {
		log.Warn().Err(err).Msg("worker failed to record batch completion time")
	}
	return nil
}

func (w *Worker) heartbeat() {
	if w.heartbeatURL == "" {
		return
	}
	resp, err := http.Get(w.heartbeatURL)
	if err != nil {
		log.Warn().Err(err).Msg("worker heartbeat failed")
		return
	}
	resp.Body.Close()
}

func (w *Worker) Count() int64 {
	return atomic.LoadInt64(&w.count)
}

// Processed reports how many players the current batch has refreshed.
func (w *Worker) Processed() int64 {
	return atomic.LoadInt64(&w.processed)
}
