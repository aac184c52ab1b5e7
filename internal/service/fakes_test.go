package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/riftstats/backend-next/internal/model"
	modelcache "github.com/riftstats/backend-next/internal/model/cache"
)

func TestMain(m *testing.M) {
	modelcache.Initialize(nil)
	os.Exit(m.Run())
}

// fakeMatchSource serves a fixed record set with the same filter semantics as
// the real repository.
type fakeMatchSource struct {
	records []*model.MatchRecord

	// scans counts GetMatchesByPlayer calls, for cache assertions.
	scans int
}

func (f *fakeMatchSource) GetMatchesByPlayer(ctx context.Context, playerId string, filter *model.MatchFilter) ([]*model.MatchRecord, error) {
	f.scans++
	out := make([]*model.MatchRecord, 0)
	for _, r := range f.records {
		if r.PlayerID != playerId {
			continue
		}
		if filter != nil {
			if filter.ChampionID.Valid && r.ChampionID != filter.ChampionID.String {
				continue
			}
			if filter.Role.Valid && r.Role != filter.Role.String {
				continue
			}
			if filter.Queue.Valid && r.Queue != filter.Queue.String {
				continue
			}
			if filter.From.Valid && r.PlayedAt.Before(filter.From.Time) {
				continue
			}
			if filter.To.Valid && r.PlayedAt.After(filter.To.Time) {
				continue
			}
		}
		out = append(out, r)
	}
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeMatchSource) GetMatchesSharedByPlayers(ctx context.Context, playerIds []string, since time.Time) ([]*model.MatchRecord, error) {
	want := make(map[string]struct{}, len(playerIds))
	for _, id := range playerIds {
		want[id] = struct{}{}
	}

	byMatch := make(map[string][]*model.MatchRecord)
	for _, r := range f.records {
		if _, ok := want[r.PlayerID]; !ok {
			continue
		}
		if !since.IsZero() && r.PlayedAt.Before(since) {
			continue
		}
		byMatch[r.MatchID] = append(byMatch[r.MatchID], r)
	}

	out := make([]*model.MatchRecord, 0)
	for _, records := range byMatch {
		present := make(map[string]struct{}, len(records))
		for _, r := range records {
			present[r.PlayerID] = struct{}{}
		}
		if len(present) != len(want) {
			continue
		}
		out = append(out, records...)
	}
	return out, nil
}

func (f *fakeMatchSource) GetMatchIDsByComposition(ctx context.Context, comp *model.TeamComposition) ([]string, error) {
	byMatch := make(map[string][]*model.MatchRecord)
	for _, r := range f.records {
		byMatch[r.MatchID] = append(byMatch[r.MatchID], r)
	}

	ids := make([]string, 0)
	for matchId, records := range byMatch {
		matched := 0
		for _, a := range comp.Assignments {
			for _, r := range records {
				if r.PlayerID == a.PlayerID && r.ChampionID == a.ChampionID && r.Role == a.Role {
					matched++
					break
				}
			}
		}
		if matched == len(comp.Assignments) {
			ids = append(ids, matchId)
		}
	}
	return ids, nil
}

func (f *fakeMatchSource) GetMatchesByMatchIDs(ctx context.Context, matchIds []string, playerIds []string) ([]*model.MatchRecord, error) {
	wantMatch := make(map[string]struct{}, len(matchIds))
	for _, id := range matchIds {
		wantMatch[id] = struct{}{}
	}
	wantPlayer := make(map[string]struct{}, len(playerIds))
	for _, id := range playerIds {
		wantPlayer[id] = struct{}{}
	}

	out := make([]*model.MatchRecord, 0)
	for _, r := range f.records {
		if _, ok := wantMatch[r.MatchID]; !ok {
			continue
		}
		if len(wantPlayer) > 0 {
			if _, ok := wantPlayer[r.PlayerID]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeMatchSource) CountByPlayer(ctx context.Context, playerId string, filter *model.MatchFilter) (int, error) {
	records, err := f.GetMatchesByPlayer(ctx, playerId, filter)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// fakeBaselineStore is an in-memory snapshot store.
type fakeBaselineStore struct {
	elements map[string][]*model.BaselineElement
}

func newFakeBaselineStore() *fakeBaselineStore {
	return &fakeBaselineStore{elements: make(map[string][]*model.BaselineElement)}
}

func (f *fakeBaselineStore) BatchSaveByPlayer(ctx context.Context, playerId string, elements []*model.BaselineElement) error {
	f.elements[playerId] = elements
	return nil
}

func (f *fakeBaselineStore) GetByPlayer(ctx context.Context, playerId string) ([]*model.BaselineElement, error) {
	return f.elements[playerId], nil
}

func (f *fakeBaselineStore) GetByPlayerAndContext(ctx context.Context, playerId string, contextKey string) (*model.BaselineElement, error) {
	for _, e := range f.elements[playerId] {
		if e.ContextKey == contextKey {
			return e, nil
		}
	}
	return nil, errors.New("baseline element not found")
}

func newTestStat() *Stat {
	return &Stat{Alpha: 0.05, SlopeThreshold: 0.005}
}

func newTestBaseline(src MatchSource, store BaselineStore, now time.Time) *Baseline {
	return &Baseline{
		MatchRepo:       src,
		ElementRepo:     store,
		StatService:     newTestStat(),
		DecayRate:       0.02,
		MinSampleSize:   10,
		ConfidenceLevel: 0.95,
		Clock:           func() time.Time { return now },
	}
}

// mkRecord builds one match record with stats proportional to the outcome so
// per-match metrics vary without being degenerate.
func mkRecord(matchId, playerId, championId, role string, win bool, playedAt time.Time) *model.MatchRecord {
	kills, deaths := 4, 6
	if win {
		kills, deaths = 8, 3
	}
	return &model.MatchRecord{
		MatchID:         matchId,
		PlayerID:        playerId,
		ChampionID:      championId,
		Role:            role,
		Queue:           "ranked",
		Win:             win,
		DurationSeconds: 1800,
		Kills:           kills,
		Deaths:          deaths,
		Assists:         5,
		CreepScore:      210,
		VisionScore:     24,
		DamageDealt:     18000,
		GoldEarned:      11000,
		TeamKills:       kills + 12,
		PlayedAt:        playedAt,
	}
}
