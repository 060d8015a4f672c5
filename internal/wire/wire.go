// Package wire holds the serialized representations exchanged with the
// backend and the mapping into domain entities. Wire records use the flat
// camelCase JSON contract of the REST API; socket frames additionally carry
// a snake_case player_id field, matching the channel layer.
package wire

import "time"

type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Team        string    `json:"team,omitempty"`
	IsAlive     bool      `json:"isAlive"`
	IsOnline    bool      `json:"isOnline"`
	Visibility  string    `json:"visibility"`
	PositionLat *float64  `json:"positionLat,omitempty"`
	PositionLng *float64  `json:"positionLng,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type Game struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	HostID         string     `json:"hostId"`
	Status         string     `json:"status"`
	HomeBaseLat    float64    `json:"homeBaseLat"`
	HomeBaseLng    float64    `json:"homeBaseLng"`
	MapRadius      int        `json:"mapRadius"`
	MaxPlayers     int        `json:"maxPlayers"`
	GameDuration   int        `json:"gameDuration"`
	RedTeamRatio   float64    `json:"redTeamRatio"`
	TasksToWin     int        `json:"tasksToWin"`
	FailuresToLose int        `json:"failuresToLose"`
	Winner         string     `json:"winner,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	Players        []Player   `json:"players,omitempty"`
}

// Frame is the envelope for every socket message, in both directions.
// Exactly which fields are populated depends on Type.
type Frame struct {
	Type     string  `json:"type"`
	Player   *Player `json:"player,omitempty"`
	Game     *Game   `json:"game,omitempty"`
	PlayerID string  `json:"player_id,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

// Inbound frame types.
const (
	TypePlayerJoined  = "player_joined"
	TypePlayerLeft    = "player_left"
	TypeGameStarted   = "game_started"
	TypePlayerMoved   = "player_moved"
	TypePlayerUpdated = "player_updated"
	TypePlayerOnline  = "player_online"
	TypePlayerOffline = "player_offline"
)

// Outbound frame types.
const (
	TypeAuthenticate   = "authenticate"
	TypePositionUpdate = "position_update"
)

func AuthenticateFrame(playerID string) Frame {
	return Frame{Type: TypeAuthenticate, PlayerID: playerID}
}

func PositionUpdateFrame(lat, lng, accuracy float64) Frame {
	return Frame{Type: TypePositionUpdate, Lat: lat, Lng: lng, Accuracy: accuracy}
}
