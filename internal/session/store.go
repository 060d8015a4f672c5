// Package session holds the single source of truth for the current game:
// session identity, roster, connection status and the event feed. All
// mutable state is owned by one loop goroutine; commands and incoming events
// are applied strictly in the order they reach its inbox, and the
// reconciliation steps are idempotent so duplicate or interleaved delivery
// cannot corrupt the roster.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urbanespionage/client/internal/api"
	"github.com/urbanespionage/client/internal/dispatch"
	"github.com/urbanespionage/client/internal/domain"
	"github.com/urbanespionage/client/internal/transport"
	"github.com/urbanespionage/client/internal/wire"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrNoGame = errors.New("no active game")
var ErrNotHost = errors.New("only the host can start the game")

// ErrSuperseded reports that a newer command invalidated this one while its
// network call was in flight; no state was changed.
var ErrSuperseded = errors.New("command superseded")

const degradedAdvisory = "Real-time updates unavailable; the game will refresh periodically."

const eventFeedCap = 100

// View is an immutable snapshot of the store, safe to hand to UI bindings.
type View struct {
	GameCode         string
	PlayerID         string
	IsHost           bool
	ConnectionStatus domain.ConnectionStatus
	Advisory         string
	Game             *domain.Game
	Roster           []domain.Player
	CurrentPlayer    *domain.Player
	MapCenter        domain.Coordinates
	Events           []dispatch.Event
	UnreadEvents     int
}

type Store struct {
	api  *api.Client
	tr   *transport.Transport
	disp *dispatch.Dispatcher
	log  *zap.Logger

	inbox   chan msg
	ctx     context.Context
	cancel  context.CancelFunc
	refresh singleflight.Group
	unsubs  []func()

	// Everything below is owned by the loop goroutine.
	game       *domain.Game
	roster     *domain.Roster
	playerID   string
	isHost     bool
	connStatus domain.ConnectionStatus
	advisory   string
	mapCenter  domain.Coordinates
	events     []dispatch.Event
	unread     int
	generation int
}

func New(apiClient *api.Client, tr *transport.Transport, disp *dispatch.Dispatcher, log *zap.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		api:        apiClient,
		tr:         tr,
		disp:       disp,
		log:        log,
		inbox:      make(chan msg, 64),
		ctx:        ctx,
		cancel:     cancel,
		roster:     domain.NewRoster(nil),
		connStatus: domain.ConnDisconnected,
	}

	for _, t := range []dispatch.EventType{
		dispatch.PlayerJoined, dispatch.PlayerLeft, dispatch.GameStarted,
		dispatch.PlayerMoved, dispatch.PlayerUpdated,
		dispatch.PlayerOnline, dispatch.PlayerOffline,
	} {
		s.unsubs = append(s.unsubs, disp.On(t, func(ev dispatch.Event) {
			s.inbox <- gameEvent{ev: ev}
		}))
	}
	tr.OnStatus(func(st transport.Status) {
		s.inbox <- transportStatus{st: st}
	})

	go s.loop()
	return s
}

// Close stops the loop and detaches from the dispatcher. The transport is
// left to the caller, which owns it.
func (s *Store) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.cancel()
}

// CreateGame creates a game with this client as host. The HTTP creation is
// authoritative: if the realtime connection cannot be established afterwards
// the command still succeeds, the session degrades to polling and an
// advisory is set.
func (s *Store) CreateGame(ctx context.Context, homeBase domain.Coordinates, hostName string, cfg domain.GameConfig) error {
	gen := s.currentGen()
	cfg = withConfigDefaults(cfg)

	wg, err := s.api.CreateGame(ctx, api.CreateGameRequest{
		HomeBaseLat:    homeBase.Latitude,
		HomeBaseLng:    homeBase.Longitude,
		HostName:       hostName,
		MaxPlayers:     cfg.MaxPlayers,
		GameDuration:   cfg.GameDuration,
		MapRadius:      cfg.MapRadius,
		RedTeamRatio:   cfg.RedTeamRatio,
		TasksToWin:     cfg.TasksToWin,
		FailuresToLose: cfg.FailuresToLose,
	})
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	g, err := wire.ToGame(wg, time.Now())
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}

	reply := make(chan error, 1)
	s.inbox <- applySession{gen: gen, game: g, playerID: g.HostID, isHost: true, reply: reply}
	if err := <-reply; err != nil {
		return err
	}

	go s.connectRealtime(g.Code, g.HostID)
	return nil
}

// JoinGame joins an existing game by code. The HTTP join failing rejects the
// command with a distinguished error (api.ErrNotFound, api.ErrInvalidOrFull
// or a generic one); a transport failure afterwards only degrades.
func (s *Store) JoinGame(ctx context.Context, code, playerName string) error {
	gen := s.currentGen()

	wp, err := s.api.JoinGame(ctx, code, playerName)
	if err != nil {
		return err
	}
	self, err := wire.ToPlayer(wp, time.Now())
	if err != nil {
		return fmt.Errorf("join game: %w", err)
	}

	wg, err := s.api.GetGame(ctx, code)
	if err != nil {
		return fmt.Errorf("join game: fetch roster: %w", err)
	}
	g, err := wire.ToGame(wg, time.Now())
	if err != nil {
		return fmt.Errorf("join game: %w", err)
	}

	reply := make(chan error, 1)
	s.inbox <- applySession{gen: gen, game: g, playerID: self.ID, isHost: g.HostID == self.ID, self: &self, reply: reply}
	if err := <-reply; err != nil {
		return err
	}

	go s.connectRealtime(code, self.ID)
	return nil
}

// LeaveGame tells the backend we left, disconnects the socket and clears all
// session state. It is a no-op when no session is active. A bump of the
// command generation up front guarantees that any still-pending command
// resolution cannot repopulate the cleared state.
func (s *Store) LeaveGame(ctx context.Context) error {
	v := s.Snapshot()
	if v.GameCode == "" {
		return nil
	}
	s.bumpGen()

	err := s.api.LeaveGame(ctx, v.GameCode, v.PlayerID)

	s.tr.Disconnect()
	reply := make(chan struct{}, 1)
	s.inbox <- clearSession{reply: reply}
	<-reply

	if err != nil {
		return fmt.Errorf("leave game: %w", err)
	}
	return nil
}

// StartGame asks the backend to start the game. Only the host may call it;
// the permission check happens locally before any network traffic. The local
// status is deliberately not transitioned here: the game_started event (or
// the next poll) performs it, so every client transitions in the same causal
// order relative to other realtime events.
func (s *Store) StartGame(ctx context.Context) error {
	v := s.Snapshot()
	if v.GameCode == "" {
		return ErrNoGame
	}
	if !v.IsHost {
		return ErrNotHost
	}
	if _, err := s.api.StartGame(ctx, v.GameCode, v.PlayerID); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	return nil
}

// UpdatePosition moves the local map center unconditionally and forwards the
// fix to the server best-effort: over the socket when connected, otherwise
// over HTTP in the background. It never blocks on the network and never
// fails.
func (s *Store) UpdatePosition(coords domain.Coordinates) {
	s.inbox <- setMapCenter{coords: coords}

	v := s.Snapshot()
	if v.GameCode == "" {
		return
	}
	if s.tr.IsConnected() {
		s.tr.Send(wire.PositionUpdateFrame(coords.Latitude, coords.Longitude, coords.Accuracy))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		if err := s.api.UpdatePosition(ctx, v.GameCode, v.PlayerID, coords.Latitude, coords.Longitude, coords.Accuracy); err != nil {
			s.log.Warn("position update dropped", zap.Error(err))
		}
	}()
}

// RefreshGame re-fetches the full game from the backend and replaces the
// local game and roster wholesale. Concurrent refreshes for the same game
// collapse into one request.
func (s *Store) RefreshGame(ctx context.Context) error {
	v := s.Snapshot()
	if v.GameCode == "" {
		return nil
	}
	gen := s.currentGen()

	out, err, _ := s.refresh.Do(v.GameCode, func() (any, error) {
		wg, err := s.api.GetGame(ctx, v.GameCode)
		if err != nil {
			return nil, err
		}
		return wire.ToGame(wg, time.Now())
	})
	if err != nil {
		return fmt.Errorf("refresh game: %w", err)
	}

	s.inbox <- applyRefresh{gen: gen, game: out.(domain.Game)}
	return nil
}

// MarkEventsRead resets the unread event counter.
func (s *Store) MarkEventsRead() {
	reply := make(chan struct{}, 1)
	s.inbox <- markRead{reply: reply}
	<-reply
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() View {
	reply := make(chan View, 1)
	s.inbox <- getView{reply: reply}
	return <-reply
}

// ConnectionStatus is a convenience for pollers and UI badges.
func (s *Store) ConnectionStatus() domain.ConnectionStatus {
	return s.Snapshot().ConnectionStatus
}

func (s *Store) connectRealtime(code, playerID string) {
	if err := s.tr.Connect(s.ctx, code, playerID); err != nil {
		s.log.Warn("realtime connection unavailable", zap.String("game", code), zap.Error(err))
		s.inbox <- degrade{advisory: degradedAdvisory}
	}
}

func (s *Store) currentGen() int {
	reply := make(chan int, 1)
	s.inbox <- getGen{reply: reply}
	return <-reply
}

func (s *Store) bumpGen() {
	reply := make(chan int, 1)
	s.inbox <- incGen{reply: reply}
	<-reply
}

func withConfigDefaults(cfg domain.GameConfig) domain.GameConfig {
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = 8
	}
	if cfg.GameDuration == 0 {
		cfg.GameDuration = 60
	}
	if cfg.MapRadius == 0 {
		cfg.MapRadius = 500
	}
	if cfg.RedTeamRatio == 0 {
		cfg.RedTeamRatio = 0.25
	}
	if cfg.TasksToWin == 0 {
		cfg.TasksToWin = 5
	}
	if cfg.FailuresToLose == 0 {
		cfg.FailuresToLose = 2
	}
	return cfg
}
