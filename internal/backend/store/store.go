// Package store persists game and player records for the dev server, either
// in memory or in Postgres when a DSN is configured.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("game not found")

type GameRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	Code           string `gorm:"uniqueIndex;size:6"`
	HostID         string `gorm:"size:36"`
	Status         string `gorm:"size:16"`
	HomeBaseLat    float64
	HomeBaseLng    float64
	MapRadius      int
	MaxPlayers     int
	GameDuration   int
	RedTeamRatio   float64
	TasksToWin     int
	FailuresToLose int
	Winner         string `gorm:"size:8"`
	CreatedAt      time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
	Players        []PlayerRecord `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

type PlayerRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	GameID      string `gorm:"index;size:36"`
	Name        string `gorm:"size:64"`
	Team        string `gorm:"size:8"`
	IsAlive     bool
	IsOnline    bool
	PositionLat *float64
	PositionLng *float64
	LastSeenAt  time.Time
	JoinedAt    time.Time
}

type Store interface {
	CreateGame(ctx context.Context, g *GameRecord) error
	// GetGame returns the game for a join code with its players in arrival
	// order, or ErrNotFound.
	GetGame(ctx context.Context, code string) (*GameRecord, error)
	ListGames(ctx context.Context, offset, limit int) ([]GameRecord, int64, error)
	SaveGame(ctx context.Context, g *GameRecord) error
	DeleteGame(ctx context.Context, gameID string) error

	AddPlayer(ctx context.Context, p *PlayerRecord) error
	SavePlayer(ctx context.Context, p *PlayerRecord) error
	RemovePlayer(ctx context.Context, gameID, playerID string) error
	GetPlayer(ctx context.Context, playerID string) (*PlayerRecord, error)
}
