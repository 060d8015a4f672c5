package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres backs the store with a database so games survive server
// restarts.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&GameRecord{}, &PlayerRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) CreateGame(ctx context.Context, g *GameRecord) error {
	return s.db.WithContext(ctx).Create(g).Error
}

func (s *Postgres) GetGame(ctx context.Context, code string) (*GameRecord, error) {
	var g GameRecord
	err := s.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Where("code = ?", code).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Postgres) ListGames(ctx context.Context, offset, limit int) ([]GameRecord, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&GameRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var games []GameRecord
	q := s.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Order("created_at ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&games).Error; err != nil {
		return nil, 0, err
	}
	return games, total, nil
}

func (s *Postgres) SaveGame(ctx context.Context, g *GameRecord) error {
	return s.db.WithContext(ctx).Omit("Players").Save(g).Error
}

func (s *Postgres) DeleteGame(ctx context.Context, gameID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", gameID).Delete(&PlayerRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&GameRecord{ID: gameID}).Error
	})
}

func (s *Postgres) AddPlayer(ctx context.Context, p *PlayerRecord) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Postgres) SavePlayer(ctx context.Context, p *PlayerRecord) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *Postgres) RemovePlayer(ctx context.Context, gameID, playerID string) error {
	return s.db.WithContext(ctx).
		Where("game_id = ? AND id = ?", gameID, playerID).
		Delete(&PlayerRecord{}).Error
}

func (s *Postgres) GetPlayer(ctx context.Context, playerID string) (*PlayerRecord, error) {
	var p PlayerRecord
	err := s.db.WithContext(ctx).First(&p, "id = ?", playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
