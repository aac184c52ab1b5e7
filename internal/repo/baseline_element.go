package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/riftstats/backend-next/internal/model"
)

type BaselineElement struct {
	DB *bun.DB
}

func NewBaselineElement(db *bun.DB) *BaselineElement {
	return &BaselineElement{DB: db}
}

// BatchSaveByPlayer replaces the player's persisted baseline snapshots in one
// transaction, so an interrupted worker run never leaves a half-written
// state: either the previous snapshots survive intact or the new full set
// lands.
func (s *BaselineElement) BatchSaveByPlayer(ctx context.Context, playerId string, elements []*model.BaselineElement) error {
	return s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*model.BaselineElement)(nil)).
			Where("player_id = ?", playerId).
			Exec(ctx); err != nil {
			return err
		}
		if len(elements) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&elements).Exec(ctx)
		return err
	})
}

func (s *BaselineElement) GetByPlayer(ctx context.Context, playerId string) ([]*model.BaselineElement, error) {
	elements := make([]*model.BaselineElement, 0)
	err := s.DB.NewSelect().
		Model(&elements).
		Where("be.player_id = ?", playerId).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return elements, nil
	} else if err != nil {
		return nil, err
	}
	return elements, nil
}

func (s *BaselineElement) GetByPlayerAndContext(ctx context.Context, playerId string, contextKey string) (*model.BaselineElement, error) {
	var element model.BaselineElement
	err := s.DB.NewSelect().
		Model(&element).
		Where("be.player_id = ?", playerId).
		Where("be.context_key = ?", contextKey).
		Order("be.computed_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &element, nil
}
