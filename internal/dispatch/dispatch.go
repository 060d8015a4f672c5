// Package dispatch turns decoded socket frames into typed domain events and
// fans them out to subscribers. Handlers for one event type run synchronously
// in registration order; unsubscription removes exactly one registration and
// is idempotent.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/urbanespionage/client/internal/domain"
	"github.com/urbanespionage/client/internal/wire"
	"go.uber.org/zap"
)

type EventType string

const (
	PlayerJoined  EventType = wire.TypePlayerJoined
	PlayerLeft    EventType = wire.TypePlayerLeft
	GameStarted   EventType = wire.TypeGameStarted
	PlayerMoved   EventType = wire.TypePlayerMoved
	PlayerUpdated EventType = wire.TypePlayerUpdated
	PlayerOnline  EventType = wire.TypePlayerOnline
	PlayerOffline EventType = wire.TypePlayerOffline
)

// Event is the typed record delivered to subscribers. Which fields are set
// depends on Type: roster events carry Player, presence and leave events
// carry PlayerID, game_started carries Game.
type Event struct {
	Type      EventType
	Player    *domain.Player
	PlayerID  string
	Game      *domain.Game
	Message   string
	Timestamp time.Time
}

type Handler func(Event)

type registration struct {
	id int
	fn Handler
}

type Dispatcher struct {
	log *zap.Logger
	now func() time.Time

	mu       sync.Mutex
	nextID   int
	handlers map[EventType][]registration
}

func New(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		log:      log,
		now:      time.Now,
		handlers: make(map[EventType][]registration),
	}
}

// On registers a handler for one event type and returns its unsubscribe
// function. Calling the returned function more than once is harmless.
func (d *Dispatcher) On(t EventType, fn Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.handlers[t] = append(d.handlers[t], registration{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		regs := d.handlers[t]
		for i, r := range regs {
			if r.id == id {
				d.handlers[t] = append(regs[:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch decodes one frame into an event and invokes every handler
// registered for its type. Unrecognized types and undecodable payloads are
// logged and dropped, never propagated.
func (d *Dispatcher) Dispatch(f wire.Frame) {
	ev, err := d.decode(f)
	if err != nil {
		d.log.Warn("dropping frame", zap.String("type", f.Type), zap.Error(err))
		return
	}
	d.notify(ev)
}

func (d *Dispatcher) decode(f wire.Frame) (Event, error) {
	now := d.now()
	ev := Event{Type: EventType(f.Type), Timestamp: now}

	switch f.Type {
	case wire.TypePlayerJoined, wire.TypePlayerMoved, wire.TypePlayerUpdated:
		if f.Player == nil {
			return Event{}, fmt.Errorf("%s frame without player", f.Type)
		}
		p, err := wire.ToPlayer(*f.Player, now)
		if err != nil {
			return Event{}, err
		}
		ev.Player = &p
		if f.Type == wire.TypePlayerJoined {
			ev.Message = p.Name + " joined the game"
		}

	case wire.TypePlayerLeft, wire.TypePlayerOnline, wire.TypePlayerOffline:
		if f.PlayerID == "" {
			return Event{}, fmt.Errorf("%s frame without player_id", f.Type)
		}
		ev.PlayerID = f.PlayerID

	case wire.TypeGameStarted:
		if f.Game == nil {
			return Event{}, fmt.Errorf("game_started frame without game")
		}
		g, err := wire.ToGame(*f.Game, now)
		if err != nil {
			return Event{}, err
		}
		ev.Game = &g
		ev.Message = "Game has started!"

	default:
		return Event{}, fmt.Errorf("unrecognized event type %q", f.Type)
	}

	return ev, nil
}

func (d *Dispatcher) notify(ev Event) {
	d.mu.Lock()
	regs := make([]registration, len(d.handlers[ev.Type]))
	copy(regs, d.handlers[ev.Type])
	d.mu.Unlock()

	for _, r := range regs {
		r.fn(ev)
	}
}
