package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/riftstats/backend-next/internal/model"
	"github.com/riftstats/backend-next/internal/pkg/rserr"
)

type Player struct {
	DB *bun.DB
}

func NewPlayer(db *bun.DB) *Player {
	return &Player{DB: db}
}

func (s *Player) GetPlayers(ctx context.Context) ([]*model.Player, error) {
	players := make([]*model.Player, 0)
	err := s.DB.NewSelect().
		Model(&players).
		Order("p.player_id ASC").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return players, nil
	} else if err != nil {
		return nil, err
	}
	return players, nil
}

func (s *Player) GetPlayerByID(ctx context.Context, playerId string) (*model.Player, error) {
	var player model.Player
	err := s.DB.NewSelect().
		Model(&player).
		Where("p.player_id = ?", playerId).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rserr.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &player, nil
}
