package session_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbanespionage/client/internal/api"
	"github.com/urbanespionage/client/internal/backend/httpapi"
	"github.com/urbanespionage/client/internal/backend/hub"
	bstore "github.com/urbanespionage/client/internal/backend/store"
	"github.com/urbanespionage/client/internal/dispatch"
	"github.com/urbanespionage/client/internal/domain"
	"github.com/urbanespionage/client/internal/poll"
	"github.com/urbanespionage/client/internal/session"
	"github.com/urbanespionage/client/internal/transport"
	"github.com/urbanespionage/client/internal/wire"
	"go.uber.org/zap"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	h := hub.NewHub(context.Background())
	t.Cleanup(func() { h.Inbox() <- hub.ShutdownHub{} })
	srv := httptest.NewServer(httpapi.SetupRoutes(bstore.NewMemory(), h, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

type testClient struct {
	store *session.Store
	disp  *dispatch.Dispatcher
}

// newClient wires a full client stack against the test backend. With
// realtime false the transport points at a dead port, so every connect
// attempt fails fast and the session has to degrade.
func newClient(t *testing.T, srv *httptest.Server, realtime bool) testClient {
	t.Helper()
	log := zap.NewNop()

	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	if !realtime {
		wsBase = "ws://127.0.0.1:1"
	}
	tr := transport.New(transport.Config{
		BaseURL:              wsBase,
		DialTimeout:          time.Second,
		ReconnectDelay:       5 * time.Millisecond,
		MaxReconnectAttempts: 2,
	}, log)
	disp := dispatch.New(log)
	tr.OnFrame(disp.Dispatch)

	st := session.New(api.New(srv.URL, log), tr, disp, log)
	t.Cleanup(func() {
		st.Close()
		tr.Disconnect()
	})
	return testClient{store: st, disp: disp}
}

func homeBase() domain.Coordinates {
	return domain.Coordinates{Latitude: 40.1, Longitude: -73.9, Timestamp: time.Now()}
}

func TestCreateGame_PopulatesSession(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, true)

	require.NoError(t, c.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{MaxPlayers: 8}))

	v := c.store.Snapshot()
	require.NotNil(t, v.Game)
	assert.Len(t, v.GameCode, 6)
	assert.True(t, v.IsHost)
	assert.Equal(t, domain.StatusLobby, v.Game.Status)
	require.NotNil(t, v.CurrentPlayer)
	assert.Equal(t, "Alice", v.CurrentPlayer.Name)

	require.Eventually(t, func() bool {
		return c.store.ConnectionStatus() == domain.ConnConnected
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, c.store.Snapshot().Advisory)
}

func TestCreateGame_DegradesWhenRealtimeUnavailable(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, false)

	// The command still succeeds: the HTTP creation is authoritative.
	require.NoError(t, c.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{}))

	require.Eventually(t, func() bool {
		v := c.store.Snapshot()
		return v.ConnectionStatus == domain.ConnDegraded && v.Advisory != ""
	}, 2*time.Second, 10*time.Millisecond)

	// Polling keeps the roster eventually consistent while degraded.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poll.New(c.store, 20*time.Millisecond, zap.NewNop()).Run(ctx)

	code := c.store.Snapshot().GameCode
	_, err := api.New(srv.URL, zap.NewNop()).JoinGame(context.Background(), code, "Bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(c.store.Snapshot().Roster) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJoinGame_ErrorTaxonomy(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, true)

	err := c.store.JoinGame(context.Background(), "ZZZZZZ", "Bob")
	require.ErrorIs(t, err, api.ErrNotFound)

	host := newClient(t, srv, true)
	require.NoError(t, host.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{MaxPlayers: 1}))

	err = c.store.JoinGame(context.Background(), host.store.Snapshot().GameCode, "Bob")
	require.ErrorIs(t, err, api.ErrInvalidOrFull)
}

func TestEndToEnd_RosterSyncAndStart(t *testing.T) {
	srv := newBackend(t)

	alice := newClient(t, srv, true)
	require.NoError(t, alice.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{MaxPlayers: 8}))
	require.Eventually(t, func() bool {
		return alice.store.ConnectionStatus() == domain.ConnConnected
	}, 2*time.Second, 10*time.Millisecond)

	code := alice.store.Snapshot().GameCode

	bob := newClient(t, srv, true)
	require.NoError(t, bob.store.JoinGame(context.Background(), code, "Bob"))
	require.Eventually(t, func() bool {
		return bob.store.ConnectionStatus() == domain.ConnConnected
	}, 2*time.Second, 10*time.Millisecond)

	names := func(v session.View) []string {
		var out []string
		for _, p := range v.Roster {
			out = append(out, p.Name)
		}
		return out
	}

	// Alice hears about Bob over the socket; no duplicates on either side.
	require.Eventually(t, func() bool {
		return len(alice.store.Snapshot().Roster) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, names(alice.store.Snapshot()))
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, names(bob.store.Snapshot()))

	// Only the game_started event transitions local status, on every client.
	require.NoError(t, alice.store.StartGame(context.Background()))
	require.Eventually(t, func() bool {
		a, b := alice.store.Snapshot(), bob.store.Snapshot()
		return a.Game != nil && a.Game.Status == domain.StatusActive &&
			b.Game != nil && b.Game.Status == domain.StatusActive
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartGame_NonHostRejectedLocally(t *testing.T) {
	srv := newBackend(t)

	alice := newClient(t, srv, true)
	require.NoError(t, alice.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{}))

	bob := newClient(t, srv, true)
	require.NoError(t, bob.store.JoinGame(context.Background(), alice.store.Snapshot().GameCode, "Bob"))

	require.ErrorIs(t, bob.store.StartGame(context.Background()), session.ErrNotHost)
}

func TestLeaveGame_ClearsSessionAndIsIdempotent(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, true)

	require.NoError(t, c.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{}))
	code := c.store.Snapshot().GameCode

	require.NoError(t, c.store.LeaveGame(context.Background()))
	v := c.store.Snapshot()
	assert.Empty(t, v.GameCode)
	assert.Empty(t, v.Roster)
	assert.Equal(t, domain.ConnDisconnected, v.ConnectionStatus)

	// No session active: leaving again is a no-op.
	require.NoError(t, c.store.LeaveGame(context.Background()))

	// The host abandoning the lobby dissolved the game.
	other := newClient(t, srv, true)
	require.ErrorIs(t, other.store.JoinGame(context.Background(), code, "Bob"), api.ErrNotFound)
}

func joinedFrame(id, name string) wire.Frame {
	return wire.Frame{
		Type:   wire.TypePlayerJoined,
		Player: &wire.Player{ID: id, Name: name, IsAlive: true, JoinedAt: time.Now()},
	}
}

func TestReconcile_DuplicateJoinIsIdempotent(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, false)
	require.NoError(t, c.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{}))

	c.disp.Dispatch(joinedFrame("bob-id", "Bob"))
	c.disp.Dispatch(joinedFrame("bob-id", "Bob"))

	require.Eventually(t, func() bool {
		return len(c.store.Snapshot().Roster) == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.store.Snapshot().Roster, 2, "duplicate delivery must not duplicate the roster entry")
}

func TestReconcile_LeaveOfAbsentPlayerIsNoop(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, false)
	require.NoError(t, c.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{}))

	before := len(c.store.Snapshot().Roster)
	c.disp.Dispatch(wire.Frame{Type: wire.TypePlayerLeft, PlayerID: "ghost"})

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.store.Snapshot().Roster, before)
}

func TestReconcile_EventOrdering(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, false)
	require.NoError(t, c.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{}))

	c.disp.Dispatch(joinedFrame("a", "Ann"))
	c.disp.Dispatch(joinedFrame("b", "Ben"))
	c.disp.Dispatch(wire.Frame{Type: wire.TypePlayerLeft, PlayerID: "a"})

	require.Eventually(t, func() bool {
		v := c.store.Snapshot()
		if len(v.Roster) != 2 {
			return false
		}
		_, hasBen := find(v.Roster, "b")
		_, hasAnn := find(v.Roster, "a")
		return hasBen && !hasAnn
	}, time.Second, 5*time.Millisecond)
}

func find(players []domain.Player, id string) (domain.Player, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Player{}, false
}

func TestUpdatePosition_AlwaysMovesMapCenter(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, false)

	pos := domain.Coordinates{Latitude: 41.0, Longitude: -72.5, Accuracy: 5, Timestamp: time.Now()}
	c.store.UpdatePosition(pos)

	require.Eventually(t, func() bool {
		return c.store.Snapshot().MapCenter == pos
	}, time.Second, 5*time.Millisecond)
}

func TestEventFeed_CountsUnread(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv, false)
	require.NoError(t, c.store.CreateGame(context.Background(), homeBase(), "Alice", domain.GameConfig{}))

	c.disp.Dispatch(joinedFrame("b", "Ben"))
	require.Eventually(t, func() bool {
		return c.store.Snapshot().UnreadEvents == 1
	}, time.Second, 5*time.Millisecond)

	c.store.MarkEventsRead()
	v := c.store.Snapshot()
	assert.Zero(t, v.UnreadEvents)
	assert.Len(t, v.Events, 1)
}
