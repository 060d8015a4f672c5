package domain

import "time"

type Team string

const (
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
)

type GameStatus string

const (
	StatusLobby     GameStatus = "lobby"
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
)

// Visibility classifies how fresh a player's last known position is.
type Visibility string

const (
	VisibilityActive Visibility = "active"
	VisibilityRecent Visibility = "recent"
	VisibilityDark   Visibility = "dark"
)

const (
	activeWindow = 2 * time.Minute
	recentWindow = 5 * time.Minute
)

// VisibilityFor derives a visibility bucket from the time a position was
// last reported: under 2 minutes is active, under 5 recent, older is dark.
func VisibilityFor(lastSeen, now time.Time) Visibility {
	age := now.Sub(lastSeen)
	switch {
	case age < activeWindow:
		return VisibilityActive
	case age < recentWindow:
		return VisibilityRecent
	default:
		return VisibilityDark
	}
}

type ConnectionStatus string

const (
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnConnecting   ConnectionStatus = "connecting"
	ConnConnected    ConnectionStatus = "connected"
	ConnDegraded     ConnectionStatus = "degraded"
)

// Coordinates is an immutable position sample. Updates produce a new value.
type Coordinates struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters; 0 when the fix did not report one
	Timestamp time.Time
}

type ItemType string

const (
	ItemEMP               ItemType = "emp"
	ItemCamera            ItemType = "camera"
	ItemTimeBomb          ItemType = "time_bomb"
	ItemLandMine          ItemType = "land_mine"
	ItemDagger            ItemType = "dagger"
	ItemMask              ItemType = "mask"
	ItemArmor             ItemType = "armor"
	ItemInvisibilityCloak ItemType = "invisibility_cloak"
	ItemPoison            ItemType = "poison"
	ItemMotionSensor      ItemType = "motion_sensor"
	ItemDecoy             ItemType = "decoy"
	ItemDogtag            ItemType = "dogtag"
)

// Item is the single inventory slot a player may carry.
type Item struct {
	ID      string
	Type    ItemType
	OwnerID string
}

type EffectType string

const (
	EffectPoisoned EffectType = "poisoned"
	EffectMasked   EffectType = "masked"
)

type StatusEffect struct {
	Type           EffectType
	ExpiresAt      time.Time
	SourcePlayerID string
}

type Player struct {
	ID            string
	Name          string
	AvatarURL     string
	Team          Team
	IsAlive       bool
	IsOnline      bool
	Visibility    Visibility
	Position      Coordinates
	LastSeen      time.Time
	CurrentItem   *Item
	StatusEffects []StatusEffect
	JoinedAt      time.Time
}

type GameConfig struct {
	MaxPlayers     int
	GameDuration   int // minutes
	MapRadius      int // meters from home base
	RedTeamRatio   float64
	TasksToWin     int
	FailuresToLose int
}

type Game struct {
	ID        string
	Code      string
	HostID    string
	Status    GameStatus
	HomeBase  Coordinates
	Config    GameConfig
	Players   []Player
	StartedAt time.Time // zero until started
	EndedAt   time.Time // zero until completed
	Winner    Team      // empty until completed
}
