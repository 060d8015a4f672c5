package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is the default store for local development and tests.
type Memory struct {
	mu      sync.Mutex
	games   map[string]*GameRecord   // by game id
	codes   map[string]string        // join code -> game id
	players map[string]*PlayerRecord // by player id
}

func NewMemory() *Memory {
	return &Memory{
		games:   make(map[string]*GameRecord),
		codes:   make(map[string]string),
		players: make(map[string]*PlayerRecord),
	}
}

func (m *Memory) CreateGame(_ context.Context, g *GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	cp.Players = nil
	m.games[g.ID] = &cp
	m.codes[g.Code] = g.ID
	for i := range g.Players {
		p := g.Players[i]
		m.players[p.ID] = &p
	}
	return nil
}

func (m *Memory) GetGame(_ context.Context, code string) (*GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return m.snapshotLocked(id)
}

func (m *Memory) ListGames(_ context.Context, offset, limit int) ([]GameRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.games[ids[i]].CreatedAt.Before(m.games[ids[j]].CreatedAt)
	})

	total := int64(len(ids))
	if offset >= len(ids) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}

	out := make([]GameRecord, 0, end-offset)
	for _, id := range ids[offset:end] {
		g, err := m.snapshotLocked(id)
		if err != nil {
			continue
		}
		out = append(out, *g)
	}
	return out, total, nil
}

func (m *Memory) SaveGame(_ context.Context, g *GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; !ok {
		return ErrNotFound
	}
	cp := *g
	cp.Players = nil
	m.games[g.ID] = &cp
	return nil
}

func (m *Memory) DeleteGame(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil
	}
	delete(m.codes, g.Code)
	delete(m.games, gameID)
	for id, p := range m.players {
		if p.GameID == gameID {
			delete(m.players, id)
		}
	}
	return nil
}

func (m *Memory) AddPlayer(_ context.Context, p *PlayerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.players[p.ID] = &cp
	return nil
}

func (m *Memory) SavePlayer(_ context.Context, p *PlayerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.players[p.ID] = &cp
	return nil
}

func (m *Memory) RemovePlayer(_ context.Context, gameID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok && p.GameID == gameID {
		delete(m.players, playerID)
	}
	return nil
}

func (m *Memory) GetPlayer(_ context.Context, playerID string) (*PlayerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) snapshotLocked(gameID string) (*GameRecord, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	for _, p := range m.players {
		if p.GameID == gameID {
			cp.Players = append(cp.Players, *p)
		}
	}
	sort.Slice(cp.Players, func(i, j int) bool {
		return cp.Players[i].JoinedAt.Before(cp.Players[j].JoinedAt)
	})
	return &cp, nil
}
