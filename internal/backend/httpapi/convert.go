package httpapi

import (
	"time"

	"github.com/urbanespionage/client/internal/backend/store"
	"github.com/urbanespionage/client/internal/domain"
	"github.com/urbanespionage/client/internal/wire"
)

func playerToWire(p store.PlayerRecord, now time.Time) wire.Player {
	return wire.Player{
		ID:          p.ID,
		Name:        p.Name,
		Team:        p.Team,
		IsAlive:     p.IsAlive,
		IsOnline:    p.IsOnline,
		Visibility:  string(domain.VisibilityFor(p.LastSeenAt, now)),
		PositionLat: p.PositionLat,
		PositionLng: p.PositionLng,
		JoinedAt:    p.JoinedAt,
	}
}

func gameToWire(g *store.GameRecord, now time.Time) wire.Game {
	out := wire.Game{
		ID:             g.ID,
		Code:           g.Code,
		HostID:         g.HostID,
		Status:         g.Status,
		HomeBaseLat:    g.HomeBaseLat,
		HomeBaseLng:    g.HomeBaseLng,
		MapRadius:      g.MapRadius,
		MaxPlayers:     g.MaxPlayers,
		GameDuration:   g.GameDuration,
		RedTeamRatio:   g.RedTeamRatio,
		TasksToWin:     g.TasksToWin,
		FailuresToLose: g.FailuresToLose,
		Winner:         g.Winner,
		CreatedAt:      g.CreatedAt,
		StartedAt:      g.StartedAt,
		EndedAt:        g.EndedAt,
	}
	for _, p := range g.Players {
		out.Players = append(out.Players, playerToWire(p, now))
	}
	return out
}
