// Package api is the REST client for the game backend. It owns the error
// taxonomy commands surface to callers: ErrNotFound for a missing game,
// ErrInvalidOrFull for a rejected join, everything else wrapped generically.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/urbanespionage/client/internal/wire"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("game not found")
var ErrInvalidOrFull = errors.New("invalid code or game full")
var ErrPermissionDenied = errors.New("permission denied")

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func New(baseURL string, log *zap.Logger) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

type CreateGameRequest struct {
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

type joinRequest struct {
	PlayerName string `json:"playerName"`
}

type leaveRequest struct {
	PlayerID string `json:"playerId"`
}

type startRequest struct {
	PlayerID string `json:"playerId,omitempty"`
}

type positionRequest struct {
	PlayerID string  `json:"playerId,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

// GameList is one page of the admin listing endpoint.
type GameList struct {
	Count    int         `json:"count"`
	Next     string      `json:"next,omitempty"`
	Previous string      `json:"previous,omitempty"`
	Results  []wire.Game `json:"results"`
}

func (c *Client) CreateGame(ctx context.Context, req CreateGameRequest) (wire.Game, error) {
	var g wire.Game
	err := c.do(ctx, http.MethodPost, "/games", req, &g)
	return g, err
}

func (c *Client) JoinGame(ctx context.Context, code, playerName string) (wire.Player, error) {
	var p wire.Player
	err := c.do(ctx, http.MethodPost, "/games/"+code+"/join", joinRequest{PlayerName: playerName}, &p)
	return p, err
}

func (c *Client) GetGame(ctx context.Context, code string) (wire.Game, error) {
	var g wire.Game
	err := c.do(ctx, http.MethodGet, "/games/"+code, nil, &g)
	return g, err
}

func (c *Client) StartGame(ctx context.Context, code, playerID string) (wire.Game, error) {
	var g wire.Game
	err := c.do(ctx, http.MethodPost, "/games/"+code+"/start", startRequest{PlayerID: playerID}, &g)
	return g, err
}

func (c *Client) LeaveGame(ctx context.Context, code, playerID string) error {
	return c.do(ctx, http.MethodPost, "/games/"+code+"/leave", leaveRequest{PlayerID: playerID}, nil)
}

func (c *Client) UpdatePosition(ctx context.Context, code, playerID string, lat, lng, accuracy float64) error {
	return c.do(ctx, http.MethodPost, "/games/"+code+"/position",
		positionRequest{PlayerID: playerID, Lat: lat, Lng: lng, Accuracy: accuracy}, nil)
}

func (c *Client) ListGames(ctx context.Context, page int) (GameList, error) {
	path := "/games"
	if page > 1 {
		path = fmt.Sprintf("/games?page=%d", page)
	}
	var l GameList
	err := c.do(ctx, http.MethodGet, path, nil, &l)
	return l, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusBadRequest, http.StatusConflict:
			return ErrInvalidOrFull
		case http.StatusForbidden:
			return ErrPermissionDenied
		default:
			return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
