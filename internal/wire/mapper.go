package wire

import (
	"fmt"
	"time"

	"github.com/urbanespionage/client/internal/domain"
)

// The mapping functions are total over well-formed records: missing optional
// fields fall back to documented defaults, while an out-of-range enum value
// is a protocol mismatch and is rejected with a descriptive error.

func parseTeam(s string) (domain.Team, error) {
	switch s {
	case "", "blue":
		return domain.TeamBlue, nil
	case "red":
		return domain.TeamRed, nil
	default:
		return "", fmt.Errorf("unknown team %q", s)
	}
}

func parseVisibility(s string) (domain.Visibility, error) {
	switch s {
	case "", "active":
		return domain.VisibilityActive, nil
	case "recent":
		return domain.VisibilityRecent, nil
	case "dark":
		return domain.VisibilityDark, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

func parseStatus(s string) (domain.GameStatus, error) {
	switch s {
	case "lobby":
		return domain.StatusLobby, nil
	case "active":
		return domain.StatusActive, nil
	case "completed":
		return domain.StatusCompleted, nil
	default:
		return "", fmt.Errorf("unknown game status %q", s)
	}
}

func parseWinner(s string) (domain.Team, error) {
	if s == "" {
		return "", nil
	}
	return parseTeam(s)
}

// ToPlayer maps a wire player record into the domain. A record without a
// reported position defaults to 0,0 stamped at now.
func ToPlayer(w Player, now time.Time) (domain.Player, error) {
	team, err := parseTeam(w.Team)
	if err != nil {
		return domain.Player{}, fmt.Errorf("player %s: %w", w.ID, err)
	}
	vis, err := parseVisibility(w.Visibility)
	if err != nil {
		return domain.Player{}, fmt.Errorf("player %s: %w", w.ID, err)
	}

	pos := domain.Coordinates{Timestamp: now}
	if w.PositionLat != nil {
		pos.Latitude = *w.PositionLat
	}
	if w.PositionLng != nil {
		pos.Longitude = *w.PositionLng
	}

	return domain.Player{
		ID:         w.ID,
		Name:       w.Name,
		AvatarURL:  w.AvatarURL,
		Team:       team,
		IsAlive:    w.IsAlive,
		IsOnline:   w.IsOnline,
		Visibility: vis,
		Position:   pos,
		LastSeen:   now,
		JoinedAt:   w.JoinedAt,
	}, nil
}

// ToGame maps a wire game record and its embedded roster into the domain.
func ToGame(w Game, now time.Time) (domain.Game, error) {
	status, err := parseStatus(w.Status)
	if err != nil {
		return domain.Game{}, fmt.Errorf("game %s: %w", w.Code, err)
	}
	winner, err := parseWinner(w.Winner)
	if err != nil {
		return domain.Game{}, fmt.Errorf("game %s: %w", w.Code, err)
	}

	players := make([]domain.Player, 0, len(w.Players))
	for _, wp := range w.Players {
		p, err := ToPlayer(wp, now)
		if err != nil {
			return domain.Game{}, err
		}
		players = append(players, p)
	}

	g := domain.Game{
		ID:     w.ID,
		Code:   w.Code,
		HostID: w.HostID,
		Status: status,
		HomeBase: domain.Coordinates{
			Latitude:  w.HomeBaseLat,
			Longitude: w.HomeBaseLng,
			Timestamp: w.CreatedAt,
		},
		Config: domain.GameConfig{
			MaxPlayers:     w.MaxPlayers,
			GameDuration:   w.GameDuration,
			MapRadius:      w.MapRadius,
			RedTeamRatio:   w.RedTeamRatio,
			TasksToWin:     w.TasksToWin,
			FailuresToLose: w.FailuresToLose,
		},
		Players: players,
		Winner:  winner,
	}
	if w.StartedAt != nil {
		g.StartedAt = *w.StartedAt
	}
	if w.EndedAt != nil {
		g.EndedAt = *w.EndedAt
	}
	return g, nil
}
