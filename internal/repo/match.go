package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/riftstats/backend-next/internal/model"
)

// DefaultScanLimit bounds unfiltered history scans; callers narrow further
// via MatchFilter.
const DefaultScanLimit = 2000

type Match struct {
	DB *bun.DB
}

func NewMatch(db *bun.DB) *Match {
	return &Match{DB: db}
}

// GetMatchesByPlayer returns the player's match records under the filter,
// newest first.
func (s *Match) GetMatchesByPlayer(ctx context.Context, playerId string, filter *model.MatchFilter) ([]*model.MatchRecord, error) {
	records := make([]*model.MatchRecord, 0)

	q := s.DB.NewSelect().
		Model(&records).
		Where("mr.player_id = ?", playerId)
	s.handleFilter(q, filter)

	limit := DefaultScanLimit
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}

	if err := q.Order("mr.played_at DESC").Limit(limit).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return records, nil
		}
		return nil, err
	}
	return records, nil
}

// GetMatchesSharedByPlayers returns records of matches in which every given
// player participated, newest first, bounded by since.
func (s *Match) GetMatchesSharedByPlayers(ctx context.Context, playerIds []string, since time.Time) ([]*model.MatchRecord, error) {
	if len(playerIds) == 0 {
		return []*model.MatchRecord{}, nil
	}

	subq := s.DB.NewSelect().
		TableExpr("match_records AS smr").
		Column("smr.match_id").
		Where("smr.player_id IN (?)", bun.In(playerIds)).
		Where("smr.played_at >= ?", since).
		Group("smr.match_id").
		Having("COUNT(DISTINCT smr.player_id) = ?", len(playerIds))

	records := make([]*model.MatchRecord, 0)
	err := s.DB.NewSelect().
		Model(&records).
		Where("mr.match_id IN (?)", subq).
		Where("mr.player_id IN (?)", bun.In(playerIds)).
		Order("mr.played_at DESC").
		Limit(DefaultScanLimit).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return records, nil
	} else if err != nil {
		return nil, err
	}
	return records, nil
}

// GetMatchIDsByComposition returns the match ids where every exact
// (player, champion, role) tuple of the composition occurred together.
func (s *Match) GetMatchIDsByComposition(ctx context.Context, comp *model.TeamComposition) ([]string, error) {
	if len(comp.Assignments) == 0 {
		return []string{}, nil
	}

	q := s.DB.NewSelect().
		TableExpr("match_records AS mr").
		Column("mr.match_id").
		Group("mr.match_id").
		Having("COUNT(DISTINCT mr.player_id) = ?", len(comp.Assignments))

	q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, a := range comp.Assignments {
			assignment := a
			q = q.WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where("mr.player_id = ?", assignment.PlayerID).
					Where("mr.champion_id = ?", assignment.ChampionID).
					Where("mr.role = ?", assignment.Role)
			})
		}
		return q
	})

	matchIds := make([]string, 0)
	if err := q.Scan(ctx, &matchIds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return matchIds, nil
		}
		return nil, err
	}
	return matchIds, nil
}

// GetMatchesByMatchIDs returns every record of the given matches restricted
// to the given players.
func (s *Match) GetMatchesByMatchIDs(ctx context.Context, matchIds []string, playerIds []string) ([]*model.MatchRecord, error) {
	if len(matchIds) == 0 {
		return []*model.MatchRecord{}, nil
	}

	records := make([]*model.MatchRecord, 0)
	q := s.DB.NewSelect().
		Model(&records).
		Where("mr.match_id IN (?)", bun.In(matchIds))
	if len(playerIds) > 0 {
		q = q.Where("mr.player_id IN (?)", bun.In(playerIds))
	}
	err := q.Order("mr.played_at DESC").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return records, nil
	} else if err != nil {
		return nil, err
	}
	return records, nil
}

// CountByPlayer returns the number of records matching the filter.
func (s *Match) CountByPlayer(ctx context.Context, playerId string, filter *model.MatchFilter) (int, error) {
	q := s.DB.NewSelect().
		Model((*model.MatchRecord)(nil)).
		Where("mr.player_id = ?", playerId)
	s.handleFilter(q, filter)
	return q.Count(ctx)
}

func (s *Match) handleFilter(q *bun.SelectQuery, filter *model.MatchFilter) {
	if filter == nil {
		return
	}
	if filter.ChampionID.Valid {
		q.Where("mr.champion_id = ?", filter.ChampionID.String)
	}
	if filter.Role.Valid {
		q.Where("mr.role = ?", filter.Role.String)
	}
	if filter.Queue.Valid {
		q.Where("mr.queue = ?", filter.Queue.String)
	}
	if filter.From.Valid {
		q.Where("mr.played_at >= ?", filter.From.Time)
	}
	if filter.To.Valid {
		q.Where("mr.played_at < ?", filter.To.Time)
	}
}
