package model

import (
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/guregu/null.v3"
)

// MatchRecord is one participant's performance in one game. Immutable once
// ingested; this service only ever reads it.
type MatchRecord struct {
	bun.BaseModel `bun:"table:match_records,alias:mr" json:"-"`

	RecordID   int64  `bun:",pk,autoincrement" json:"-"`
	MatchID    string `json:"matchId"`
	PlayerID   string `json:"playerId"`
	ChampionID string `json:"championId"`
	Role       string `json:"role"`
	Queue      string `json:"queue"`
	Win        bool   `json:"win"`

	DurationSeconds int `json:"durationSeconds"`

	Kills       int `json:"kills"`
	Deaths      int `json:"deaths"`
	Assists     int `json:"assists"`
	CreepScore  int `json:"creepScore"`
	VisionScore int `json:"visionScore"`
	DamageDealt int `json:"damageDealt"`
	GoldEarned  int `json:"goldEarned"`

	// TeamKills is the kill total of the record's team, needed for kill
	// participation. Denormalized by the ingestion collaborator.
	TeamKills int `json:"teamKills"`

	PlayedAt time.Time `json:"playedAt"`
}

// MatchFilter narrows a match-history scan. Every scan is bounded by the
// filter; there are no unbounded history walks in the engine.
type MatchFilter struct {
	ChampionID null.String `json:"championId" query:"championId"`
	Role       null.String `json:"role" query:"role"`
	Queue      null.String `json:"queue" query:"queue"`

	From null.Time `json:"from" query:"from"`
	To   null.Time `json:"to" query:"to"`

	// Limit caps the number of records scanned, newest first. Zero means the
	// repository default.
	Limit int `json:"limit" query:"limit"`
}

// Player is a roster entry. Roster CRUD is owned by a collaborator; the
// engine only enumerates players for batch recomputation.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p" json:"-"`

	PlayerID string `bun:",pk" json:"playerId"`
	Name     string `json:"name"`
	Region   string `json:"region"`
}
