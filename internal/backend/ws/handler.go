// Package ws accepts realtime connections for a game channel, fans
// published frames out to the socket, and turns inbound authenticate and
// position_update frames into store updates and presence broadcasts.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/urbanespionage/client/internal/backend/channel"
	"github.com/urbanespionage/client/internal/backend/hub"
	"github.com/urbanespionage/client/internal/backend/store"
	"github.com/urbanespionage/client/internal/wire"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

func Handler(h *hub.Hub, st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		if _, err := st.GetGame(r.Context(), code); errors.Is(err, store.ErrNotFound) {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		ch := h.Ensure(code)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan wire.Frame, 8)
		clientID := uuid.NewString()

		ch.Inbox() <- channel.Subscribe{ClientID: clientID, Outbox: out}
		defer func() { ch.Inbox() <- channel.Unsubscribe{ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for f := range out {
				payload, _ := json.Marshal(f)
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		var playerID string
		defer func() {
			if playerID != "" {
				setOnline(st, log, playerID, false)
				ch.Inbox() <- channel.Publish{Frame: wire.Frame{Type: wire.TypePlayerOffline, PlayerID: playerID}}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var f wire.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				log.Warn("bad frame", zap.String("game", code), zap.Error(err))
				continue
			}

			switch f.Type {
			case wire.TypeAuthenticate:
				if f.PlayerID == "" {
					continue
				}
				playerID = f.PlayerID
				setOnline(st, log, playerID, true)
				ch.Inbox() <- channel.Publish{Frame: wire.Frame{Type: wire.TypePlayerOnline, PlayerID: playerID}}

			case wire.TypePositionUpdate:
				if playerID == "" {
					continue
				}
				moved, ok := recordPosition(st, log, playerID, f.Lat, f.Lng)
				if ok {
					ch.Inbox() <- channel.Publish{Frame: wire.Frame{Type: wire.TypePlayerMoved, Player: &moved}}
				}

			default:
				log.Warn("unknown frame type", zap.String("type", f.Type))
			}
		}
	}
}

func setOnline(st store.Store, log *zap.Logger, playerID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := st.GetPlayer(ctx, playerID)
	if err != nil {
		return
	}
	p.IsOnline = online
	p.LastSeenAt = time.Now().UTC()
	if err := st.SavePlayer(ctx, p); err != nil {
		log.Warn("save presence", zap.Error(err))
	}
}

func recordPosition(st store.Store, log *zap.Logger, playerID string, lat, lng float64) (wire.Player, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p, err := st.GetPlayer(ctx, playerID)
	if err != nil {
		return wire.Player{}, false
	}
	now := time.Now().UTC()
	p.PositionLat = &lat
	p.PositionLng = &lng
	p.LastSeenAt = now
	if err := st.SavePlayer(ctx, p); err != nil {
		log.Warn("save position", zap.Error(err))
		return wire.Player{}, false
	}
	return wire.Player{
		ID:          p.ID,
		Name:        p.Name,
		Team:        p.Team,
		IsAlive:     p.IsAlive,
		IsOnline:    p.IsOnline,
		Visibility:  "active",
		PositionLat: p.PositionLat,
		PositionLng: p.PositionLng,
		JoinedAt:    p.JoinedAt,
	}, true
}
