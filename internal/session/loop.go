package session

import (
	"go.uber.org/zap"

	"github.com/urbanespionage/client/internal/dispatch"
	"github.com/urbanespionage/client/internal/domain"
	"github.com/urbanespionage/client/internal/transport"
)

type msg interface{ isStoreMsg() }

// applySession installs the result of a create or join command. gen is the
// command generation captured before the HTTP call; a stale gen means a
// newer command (typically a leave) won the race and the result is dropped.
type applySession struct {
	gen      int
	game     domain.Game
	playerID string
	isHost   bool
	self     *domain.Player // joined player, in case the roster fetch raced the join
	reply    chan error
}

type applyRefresh struct {
	gen  int
	game domain.Game
}

type clearSession struct{ reply chan struct{} }

type gameEvent struct{ ev dispatch.Event }

type transportStatus struct{ st transport.Status }

type degrade struct{ advisory string }

type setMapCenter struct{ coords domain.Coordinates }

type getView struct{ reply chan View }

type getGen struct{ reply chan int }

type incGen struct{ reply chan int }

type markRead struct{ reply chan struct{} }

func (applySession) isStoreMsg()    {}
func (applyRefresh) isStoreMsg()    {}
func (clearSession) isStoreMsg()    {}
func (gameEvent) isStoreMsg()       {}
func (transportStatus) isStoreMsg() {}
func (degrade) isStoreMsg()         {}
func (setMapCenter) isStoreMsg()    {}
func (getView) isStoreMsg()         {}
func (getGen) isStoreMsg()          {}
func (incGen) isStoreMsg()          {}
func (markRead) isStoreMsg()        {}

func (s *Store) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case applySession:
				if msg.gen != s.generation {
					msg.reply <- ErrSuperseded
					break
				}
				g := msg.game
				s.game = &g
				s.roster = domain.NewRoster(g.Players)
				if msg.self != nil {
					s.roster.Add(*msg.self)
				}
				s.playerID = msg.playerID
				s.isHost = msg.isHost
				s.connStatus = domain.ConnConnecting
				s.advisory = ""
				s.events = nil
				s.unread = 0
				msg.reply <- nil

			case applyRefresh:
				if msg.gen != s.generation || s.game == nil {
					break
				}
				// Wholesale replacement, last writer wins against any
				// event-driven updates that arrived out of band.
				g := msg.game
				s.game = &g
				s.roster.Replace(g.Players)

			case clearSession:
				s.generation++
				s.game = nil
				s.roster = domain.NewRoster(nil)
				s.playerID = ""
				s.isHost = false
				s.connStatus = domain.ConnDisconnected
				s.advisory = ""
				s.events = nil
				s.unread = 0
				msg.reply <- struct{}{}

			case gameEvent:
				s.reconcile(msg.ev)

			case transportStatus:
				s.applyTransportStatus(msg.st)

			case degrade:
				if s.game != nil {
					s.connStatus = domain.ConnDegraded
					s.advisory = msg.advisory
				}

			case setMapCenter:
				s.mapCenter = msg.coords

			case getView:
				msg.reply <- s.view()

			case getGen:
				msg.reply <- s.generation

			case incGen:
				s.generation++
				msg.reply <- s.generation

			case markRead:
				s.unread = 0
				msg.reply <- struct{}{}
			}
		}
	}
}

// reconcile folds one realtime event into the roster. Join and leave are
// idempotent, so duplicate delivery or an interleaved full refresh cannot
// produce duplicate ids or spurious removals.
func (s *Store) reconcile(ev dispatch.Event) {
	if s.game == nil {
		return
	}

	switch ev.Type {
	case dispatch.PlayerJoined:
		if s.roster.Add(*ev.Player) {
			s.log.Info("player joined", zap.String("player", ev.Player.Name))
		}

	case dispatch.PlayerLeft:
		s.roster.Remove(ev.PlayerID)

	case dispatch.GameStarted:
		s.game.Status = domain.StatusActive
		if ev.Game != nil {
			s.game.StartedAt = ev.Game.StartedAt
		}

	case dispatch.PlayerMoved, dispatch.PlayerUpdated:
		s.roster.Update(*ev.Player)

	case dispatch.PlayerOnline:
		s.setOnline(ev.PlayerID, true)

	case dispatch.PlayerOffline:
		s.setOnline(ev.PlayerID, false)
	}

	s.events = append(s.events, ev)
	if len(s.events) > eventFeedCap {
		s.events = s.events[len(s.events)-eventFeedCap:]
	}
	s.unread++
}

func (s *Store) setOnline(playerID string, online bool) {
	if p, ok := s.roster.Get(playerID); ok {
		p.IsOnline = online
		s.roster.Update(p)
	}
}

func (s *Store) applyTransportStatus(st transport.Status) {
	if s.game == nil {
		// No session: whatever the socket does, we are simply disconnected.
		s.connStatus = domain.ConnDisconnected
		return
	}
	switch st {
	case transport.StatusOpen:
		s.connStatus = domain.ConnConnected
		s.advisory = ""
	case transport.StatusConnecting:
		s.connStatus = domain.ConnConnecting
	case transport.StatusClosed:
		s.connStatus = domain.ConnDegraded
		if s.advisory == "" {
			s.advisory = degradedAdvisory
		}
	}
}

func (s *Store) view() View {
	v := View{
		PlayerID:         s.playerID,
		IsHost:           s.isHost,
		ConnectionStatus: s.connStatus,
		Advisory:         s.advisory,
		MapCenter:        s.mapCenter,
		Roster:           s.roster.Players(),
		UnreadEvents:     s.unread,
	}
	if s.game != nil {
		g := *s.game
		g.Players = s.roster.Players()
		v.Game = &g
		v.GameCode = g.Code
	}
	if p, ok := s.roster.Get(s.playerID); ok {
		v.CurrentPlayer = &p
	}
	if len(s.events) > 0 {
		v.Events = make([]dispatch.Event, len(s.events))
		copy(v.Events, s.events)
	}
	return v
}
