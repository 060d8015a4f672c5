package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbanespionage/client/internal/wire"
	"go.uber.org/zap"
)

// wsServer is a scriptable game-channel endpoint: "accept" keeps the
// connection open and echoes a player_joined frame for every inbound frame,
// "refuse" fails the upgrade so dials error out.
type wsServer struct {
	srv   *httptest.Server
	dials atomic.Int32
	conns chan *websocket.Conn

	mu   sync.Mutex
	mode string
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{mode: "accept", conns: make(chan *websocket.Conn, 8)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.dials.Add(1)
		if s.getMode() == "refuse" {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
		for {
			_, _, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			reply, _ := json.Marshal(wire.Frame{
				Type:   wire.TypePlayerJoined,
				Player: &wire.Player{ID: "p9", Name: "Echo", IsAlive: true},
			})
			if err := conn.Write(r.Context(), websocket.MessageText, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) baseURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) setMode(m string) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *wsServer) getMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *wsServer) takeConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-s.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for server-side connection")
		return nil
	}
}

func newTransport(s *wsServer) *Transport {
	return New(Config{
		BaseURL:              s.baseURL(),
		DialTimeout:          2 * time.Second,
		ReconnectDelay:       5 * time.Millisecond,
		MaxReconnectAttempts: 3,
	}, zap.NewNop())
}

func TestConnect_IdempotentOnSameChannel(t *testing.T) {
	s := newWSServer(t)
	tr := newTransport(s)
	defer tr.Disconnect()

	require.NoError(t, tr.Connect(context.Background(), "ABC123", "p1"))
	require.True(t, tr.IsConnected())

	require.NoError(t, tr.Connect(context.Background(), "ABC123", "p1"))
	assert.Equal(t, int32(1), s.dials.Load())
}

func TestConnect_DeliversDecodedFrames(t *testing.T) {
	s := newWSServer(t)
	tr := newTransport(s)
	defer tr.Disconnect()

	frames := make(chan wire.Frame, 8)
	tr.OnFrame(func(f wire.Frame) { frames <- f })

	// The authenticate frame sent on open makes the server echo once.
	require.NoError(t, tr.Connect(context.Background(), "ABC123", "p1"))

	select {
	case f := <-frames:
		assert.Equal(t, wire.TypePlayerJoined, f.Type)
		require.NotNil(t, f.Player)
		assert.Equal(t, "Echo", f.Player.Name)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

func TestSend_NoopWhenNotConnected(t *testing.T) {
	s := newWSServer(t)
	tr := newTransport(s)

	// Must not panic or block.
	tr.Send(wire.PositionUpdateFrame(1, 2, 3))
	assert.False(t, tr.IsConnected())
}

func TestDisconnect_SuppressesReconnect(t *testing.T) {
	s := newWSServer(t)
	tr := newTransport(s)

	require.NoError(t, tr.Connect(context.Background(), "ABC123", "p1"))
	tr.Disconnect()

	assert.Equal(t, StatusClosed, tr.Status())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), s.dials.Load())
}

func TestReconnect_BoundedThenExplicitConnectWorks(t *testing.T) {
	s := newWSServer(t)
	tr := newTransport(s)
	defer tr.Disconnect()

	require.NoError(t, tr.Connect(context.Background(), "ABC123", "p1"))
	serverConn := s.takeConn(t)

	// Abnormal closure with every redial refused: the supervisor must give
	// up after the configured attempts and stay closed.
	s.setMode("refuse")
	serverConn.Close(websocket.StatusInternalError, "boom")

	require.Eventually(t, func() bool {
		return tr.Status() == StatusClosed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1+3), s.dials.Load())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1+3), s.dials.Load(), "no automatic attempts after exhaustion")

	// An explicit Connect afterwards is independent of the exhausted run.
	s.setMode("accept")
	require.NoError(t, tr.Connect(context.Background(), "ABC123", "p1"))
	assert.True(t, tr.IsConnected())
}

func TestReconnect_RecoversWhenServerReturns(t *testing.T) {
	s := newWSServer(t)
	tr := newTransport(s)
	defer tr.Disconnect()

	statuses := make(chan Status, 16)
	tr.OnStatus(func(st Status) { statuses <- st })

	require.NoError(t, tr.Connect(context.Background(), "ABC123", "p1"))
	serverConn := s.takeConn(t)

	serverConn.Close(websocket.StatusInternalError, "boom")

	require.Eventually(t, tr.IsConnected, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, s.dials.Load(), int32(2))
}
