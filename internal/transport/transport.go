// Package transport owns the single live socket connection to a game
// channel. It decodes frames, reports status transitions, and supervises
// reconnection after abnormal closure with a linearly increasing delay.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/urbanespionage/client/internal/wire"
	"go.uber.org/zap"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosing    Status = "closing"
	StatusClosed     Status = "closed"
)

const writeTimeout = 3 * time.Second

type Config struct {
	BaseURL              string        // ws:// or wss:// base, no trailing slash required
	DialTimeout          time.Duration // default 10s
	ReconnectDelay       time.Duration // base delay; attempt n waits n times this; default 1s
	MaxReconnectAttempts int           // default 5
}

type Transport struct {
	cfg Config
	log *zap.Logger

	onFrame  func(wire.Frame)
	onStatus func(Status)

	mu        sync.Mutex
	status    Status
	conn      *websocket.Conn
	channelID string
	clientID  string
	// gen identifies one logical connection session. Connect and Disconnect
	// bump it; read loops and the reconnect supervisor abandon their work
	// when their captured gen is no longer current.
	gen  int
	stop chan struct{}
}

func New(cfg Config, log *zap.Logger) *Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	return &Transport{cfg: cfg, log: log, status: StatusIdle}
}

// OnFrame sets the hook invoked once per decoded inbound frame. Set before
// Connect; frames arriving with no hook are dropped.
func (t *Transport) OnFrame(fn func(wire.Frame)) {
	t.mu.Lock()
	t.onFrame = fn
	t.mu.Unlock()
}

// OnStatus sets the hook invoked on every status transition.
func (t *Transport) OnStatus(fn func(Status)) {
	t.mu.Lock()
	t.onStatus = fn
	t.mu.Unlock()
}

func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Transport) IsConnected() bool { return t.Status() == StatusOpen }

// Connect opens a socket to the given game channel. Already being connected
// to the same channel is a no-op; any other live connection is torn down
// first. Once the socket reports open, the authenticate frame is sent
// fire-and-forget and Connect returns without waiting for acknowledgment.
func (t *Transport) Connect(ctx context.Context, channelID, clientID string) error {
	t.mu.Lock()
	if t.status == StatusOpen && t.channelID == channelID {
		t.mu.Unlock()
		return nil
	}
	t.gen++
	gen := t.gen
	if t.stop != nil {
		close(t.stop)
	}
	t.stop = make(chan struct{})
	old := t.conn
	t.conn = nil
	t.channelID = channelID
	t.clientID = clientID
	t.mu.Unlock()

	if old != nil {
		old.Close(websocket.StatusNormalClosure, "reconnecting")
	}
	t.setStatus(StatusConnecting)

	conn, err := t.dial(ctx, channelID)
	if err != nil {
		if t.currentGen(gen) {
			t.setStatus(StatusClosed)
		}
		return err
	}

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "superseded")
		return errors.New("connect superseded")
	}
	t.conn = conn
	t.mu.Unlock()
	t.setStatus(StatusOpen)

	if clientID != "" {
		t.Send(wire.AuthenticateFrame(clientID))
	}
	go t.readLoop(conn, gen)
	return nil
}

// Disconnect closes the socket with a normal-closure code so the reconnect
// supervisor does not trigger, and forgets the channel and client ids. Safe
// to call when already disconnected.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.gen++
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	conn := t.conn
	t.conn = nil
	t.channelID = ""
	t.clientID = ""
	t.mu.Unlock()

	if conn != nil {
		t.setStatus(StatusClosing)
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	t.setStatus(StatusClosed)
}

// Send serializes and transmits a frame if the socket is open. Sends are
// best-effort: when the socket is not open or the write fails, the frame is
// dropped with a warning.
func (t *Transport) Send(f wire.Frame) {
	t.mu.Lock()
	conn := t.conn
	open := t.status == StatusOpen
	t.mu.Unlock()
	if !open || conn == nil {
		t.log.Warn("socket not open, dropping frame", zap.String("type", f.Type))
		return
	}

	payload, err := json.Marshal(f)
	if err != nil {
		t.log.Warn("encode frame", zap.String("type", f.Type), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		t.log.Warn("socket write failed", zap.String("type", f.Type), zap.Error(err))
	}
}

func (t *Transport) dial(ctx context.Context, channelID string) (*websocket.Conn, error) {
	// Channel-layer URL format, trailing slash required by the server.
	url := fmt.Sprintf("%s/ws/game/%s/", strings.TrimRight(t.cfg.BaseURL, "/"), channelID)
	dctx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

func (t *Transport) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			t.readClosed(gen, err)
			return
		}
		var f wire.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.log.Warn("discarding malformed frame", zap.Error(err))
			continue
		}
		t.mu.Lock()
		fn := t.onFrame
		t.mu.Unlock()
		if fn != nil {
			fn(f)
		}
	}
}

func (t *Transport) readClosed(gen int, err error) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		t.mu.Unlock()
		t.setStatus(StatusClosed)
		return
	}
	stop := t.stop
	channelID, clientID := t.channelID, t.clientID
	t.mu.Unlock()

	t.log.Warn("socket closed abnormally", zap.Error(err))
	go t.reconnectLoop(gen, stop, channelID, clientID)
}

// reconnectLoop is the single supervisor for one connection session. It
// owns the attempt counter and the delay computation; closing stop or a gen
// bump cancels it. Exhausting the attempts leaves the transport closed until
// an explicit Connect.
func (t *Transport) reconnectLoop(gen int, stop chan struct{}, channelID, clientID string) {
	t.setStatus(StatusConnecting)

	for attempt := 1; attempt <= t.cfg.MaxReconnectAttempts; attempt++ {
		delay := time.Duration(attempt) * t.cfg.ReconnectDelay
		select {
		case <-stop:
			return
		case <-time.After(delay):
		}
		if !t.currentGen(gen) {
			return
		}

		t.log.Info("reconnecting",
			zap.String("channel", channelID),
			zap.Int("attempt", attempt),
			zap.Int("max", t.cfg.MaxReconnectAttempts))

		conn, err := t.dial(context.Background(), channelID)
		if err != nil {
			t.log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		t.mu.Lock()
		if gen != t.gen {
			t.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "superseded")
			return
		}
		t.conn = conn
		t.mu.Unlock()
		t.setStatus(StatusOpen)

		if clientID != "" {
			t.Send(wire.AuthenticateFrame(clientID))
		}
		go t.readLoop(conn, gen)
		return
	}

	t.log.Warn("reconnect attempts exhausted", zap.String("channel", channelID))
	if t.currentGen(gen) {
		t.setStatus(StatusClosed)
	}
}

func (t *Transport) currentGen(gen int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen
}

func (t *Transport) setStatus(st Status) {
	t.mu.Lock()
	changed := t.status != st
	t.status = st
	fn := t.onStatus
	t.mu.Unlock()
	if changed && fn != nil {
		fn(st)
	}
}
