package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	mrand "math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/urbanespionage/client/internal/backend/channel"
	"github.com/urbanespionage/client/internal/backend/hub"
	"github.com/urbanespionage/client/internal/backend/store"
	"github.com/urbanespionage/client/internal/domain"
	"github.com/urbanespionage/client/internal/wire"
	"go.uber.org/zap"
)

const pageSize = 20

type API struct {
	store store.Store
	hub   *hub.Hub
	log   *zap.Logger
}

func New(st store.Store, h *hub.Hub, log *zap.Logger) *API {
	return &API{store: st, hub: h, log: log}
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createGameRequest struct {
	HomeBaseLat    float64 `json:"homeBaseLat"`
	HomeBaseLng    float64 `json:"homeBaseLng"`
	HostName       string  `json:"hostName"`
	MaxPlayers     int     `json:"maxPlayers"`
	GameDuration   int     `json:"gameDuration"`
	MapRadius      int     `json:"mapRadius"`
	RedTeamRatio   float64 `json:"redTeamRatio"`
	TasksToWin     int     `json:"tasksToWin"`
	FailuresToLose int     `json:"failuresToLose"`
}

func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.HostName == "" {
		http.Error(w, "hostName required", http.StatusBadRequest)
		return
	}

	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			http.Error(w, "failed to generate code", http.StatusInternalServerError)
			return
		}
		if _, err := a.store.GetGame(r.Context(), c); errors.Is(err, store.ErrNotFound) {
			code = c
			break
		}
		a.log.Info("collision on code, regenerating")
	}

	now := time.Now().UTC()
	host := store.PlayerRecord{
		ID:         uuid.NewString(),
		Name:       req.HostName,
		Team:       string(domain.TeamBlue),
		IsAlive:    true,
		IsOnline:   false,
		LastSeenAt: now,
		JoinedAt:   now,
	}
	game := store.GameRecord{
		ID:             uuid.NewString(),
		Code:           code,
		HostID:         host.ID,
		Status:         string(domain.StatusLobby),
		HomeBaseLat:    req.HomeBaseLat,
		HomeBaseLng:    req.HomeBaseLng,
		MapRadius:      req.MapRadius,
		MaxPlayers:     req.MaxPlayers,
		GameDuration:   req.GameDuration,
		RedTeamRatio:   req.RedTeamRatio,
		TasksToWin:     req.TasksToWin,
		FailuresToLose: req.FailuresToLose,
	}
	game.CreatedAt = now
	host.GameID = game.ID
	game.Players = []store.PlayerRecord{host}

	if err := a.store.CreateGame(r.Context(), &game); err != nil {
		a.log.Error("create game", zap.Error(err))
		http.Error(w, "failed to create game", http.StatusInternalServerError)
		return
	}
	a.hub.Ensure(code)

	writeJSON(w, http.StatusCreated, gameToWire(&game, now))
}

type joinGameRequest struct {
	PlayerName string `json:"playerName"`
}

func (a *API) JoinGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerName == "" {
		http.Error(w, "playerName required", http.StatusBadRequest)
		return
	}

	game, err := a.store.GetGame(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if game.Status != string(domain.StatusLobby) {
		http.Error(w, "game already started", http.StatusBadRequest)
		return
	}
	if game.MaxPlayers > 0 && len(game.Players) >= game.MaxPlayers {
		http.Error(w, "game full", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	player := store.PlayerRecord{
		ID:         uuid.NewString(),
		GameID:     game.ID,
		Name:       req.PlayerName,
		Team:       string(domain.TeamBlue),
		IsAlive:    true,
		LastSeenAt: now,
		JoinedAt:   now,
	}
	if err := a.store.AddPlayer(r.Context(), &player); err != nil {
		a.log.Error("add player", zap.Error(err))
		http.Error(w, "join failed", http.StatusInternalServerError)
		return
	}

	wp := playerToWire(player, now)
	a.publish(code, wire.Frame{Type: wire.TypePlayerJoined, Player: &wp})

	writeJSON(w, http.StatusCreated, wp)
}

func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	game, err := a.store.GetGame(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, gameToWire(game, time.Now().UTC()))
}

type startGameRequest struct {
	PlayerID string `json:"playerId"`
}

func (a *API) StartGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req startGameRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	game, err := a.store.GetGame(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if req.PlayerID != "" && req.PlayerID != game.HostID {
		http.Error(w, "only the host can start the game", http.StatusForbidden)
		return
	}
	if game.Status != string(domain.StatusLobby) {
		http.Error(w, "game already started", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	game.Status = string(domain.StatusActive)
	game.StartedAt = &now
	a.assignTeams(r.Context(), game)
	if err := a.store.SaveGame(r.Context(), game); err != nil {
		a.log.Error("save game", zap.Error(err))
		http.Error(w, "start failed", http.StatusInternalServerError)
		return
	}

	wg := gameToWire(game, now)
	a.publish(code, wire.Frame{Type: wire.TypeGameStarted, Game: &wg})

	writeJSON(w, http.StatusOK, wg)
}

// assignTeams deals out red roles at game start according to the configured
// ratio, at least one red when more than one player joined.
func (a *API) assignTeams(ctx context.Context, game *store.GameRecord) {
	n := len(game.Players)
	if n == 0 {
		return
	}
	red := int(math.Round(game.RedTeamRatio * float64(n)))
	if red < 1 && n > 1 {
		red = 1
	}
	if red >= n {
		red = n - 1
	}
	for i, j := range mrand.Perm(n) {
		team := domain.TeamBlue
		if i < red {
			team = domain.TeamRed
		}
		game.Players[j].Team = string(team)
		if err := a.store.SavePlayer(ctx, &game.Players[j]); err != nil {
			a.log.Error("save player team", zap.Error(err))
		}
	}
}

type leaveGameRequest struct {
	PlayerID string `json:"playerId"`
}

func (a *API) LeaveGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req leaveGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "playerId required", http.StatusBadRequest)
		return
	}

	game, err := a.store.GetGame(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	if err := a.store.RemovePlayer(r.Context(), game.ID, req.PlayerID); err != nil {
		a.log.Error("remove player", zap.Error(err))
		http.Error(w, "leave failed", http.StatusInternalServerError)
		return
	}
	a.publish(code, wire.Frame{Type: wire.TypePlayerLeft, PlayerID: req.PlayerID})

	// A host abandoning the lobby dissolves the game.
	if req.PlayerID == game.HostID && game.Status == string(domain.StatusLobby) {
		if err := a.store.DeleteGame(r.Context(), game.ID); err != nil {
			a.log.Error("delete game", zap.Error(err))
		}
		a.hub.Inbox() <- hub.RemoveChannel{Code: code}
	}

	w.WriteHeader(http.StatusNoContent)
}

type positionRequest struct {
	PlayerID string  `json:"playerId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

func (a *API) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		http.Error(w, "playerId required", http.StatusBadRequest)
		return
	}

	player, err := a.store.GetPlayer(r.Context(), req.PlayerID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	player.PositionLat = &req.Lat
	player.PositionLng = &req.Lng
	player.LastSeenAt = now
	if err := a.store.SavePlayer(r.Context(), player); err != nil {
		a.log.Error("save player", zap.Error(err))
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}

	wp := playerToWire(*player, now)
	a.publish(code, wire.Frame{Type: wire.TypePlayerMoved, Player: &wp})

	w.WriteHeader(http.StatusNoContent)
}

type gameListResponse struct {
	Count    int         `json:"count"`
	Next     string      `json:"next,omitempty"`
	Previous string      `json:"previous,omitempty"`
	Results  []wire.Game `json:"results"`
}

func (a *API) ListGames(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 1 {
		page = p
	}

	games, total, err := a.store.ListGames(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	resp := gameListResponse{Count: int(total)}
	for i := range games {
		resp.Results = append(resp.Results, gameToWire(&games[i], now))
	}
	if page*pageSize < int(total) {
		resp.Next = "/games?page=" + strconv.Itoa(page+1)
	}
	if page > 1 {
		resp.Previous = "/games?page=" + strconv.Itoa(page-1)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *API) publish(code string, f wire.Frame) {
	if ch := a.hub.Get(code); ch != nil {
		ch.Inbox() <- channel.Publish{Frame: f}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
