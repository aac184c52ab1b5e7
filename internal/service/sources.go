package service

import (
	"context"
	"time"

	"github.com/riftstats/backend-next/internal/model"
)

// MatchSource is the read surface of the match repository the analysis
// services depend on. Satisfied by *repo.Match.
type MatchSource interface {
	GetMatchesByPlayer(ctx context.Context, playerId string, filter *model.MatchFilter) ([]*model.MatchRecord, error)
	GetMatchesSharedByPlayers(ctx context.Context, playerIds []string, since time.Time) ([]*model.MatchRecord, error)
	GetMatchIDsByComposition(ctx context.Context, comp *model.TeamComposition) ([]string, error)
	GetMatchesByMatchIDs(ctx context.Context, matchIds []string, playerIds []string) ([]*model.MatchRecord, error)
	CountByPlayer(ctx context.Context, playerId string, filter *model.MatchFilter) (int, error)
}

// BaselineStore persists baseline snapshots across restarts. Satisfied by
// *repo.BaselineElement.
type BaselineStore interface {
	BatchSaveByPlayer(ctx context.Context, playerId string, elements []*model.BaselineElement) error
	GetByPlayer(ctx context.Context, playerId string) ([]*model.BaselineElement, error)
	GetByPlayerAndContext(ctx context.Context, playerId string, contextKey string) (*model.BaselineElement, error)
}

// PlayerSource enumerates the roster for batch recomputation. Satisfied by
// *repo.Player.
type PlayerSource interface {
	GetPlayers(ctx context.Context) ([]*model.Player, error)
	GetPlayerByID(ctx context.Context, playerId string) (*model.Player, error)
}
