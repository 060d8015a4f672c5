// ueclient is a terminal client for poking at a game backend: create or
// join a game, watch roster changes, and feed position updates.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/urbanespionage/client/internal/api"
	"github.com/urbanespionage/client/internal/config"
	"github.com/urbanespionage/client/internal/dispatch"
	"github.com/urbanespionage/client/internal/domain"
	"github.com/urbanespionage/client/internal/poll"
	"github.com/urbanespionage/client/internal/session"
	"github.com/urbanespionage/client/internal/transport"
	"go.uber.org/zap"
)

func main() {
	var (
		name   = flag.String("name", "", "player name (required)")
		create = flag.Bool("create", false, "create a new game instead of joining")
		code   = flag.String("code", "", "join code of an existing game")
		lat    = flag.Float64("lat", 40.1, "home base / starting latitude")
		lng    = flag.Float64("lng", -73.9, "home base / starting longitude")
	)
	flag.Parse()

	if *name == "" || (!*create && *code == "") {
		fmt.Fprintln(os.Stderr, "usage: ueclient -name NAME (-create | -code CODE)")
		os.Exit(2)
	}

	log := zap.Must(zap.NewDevelopment())
	defer log.Sync()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	apiClient := api.New(cfg.APIBaseURL, log)
	tr := transport.New(transport.Config{
		BaseURL:     cfg.WSBaseURL,
		DialTimeout: cfg.DialTimeout,
	}, log)
	disp := dispatch.New(log)
	tr.OnFrame(disp.Dispatch)

	store := session.New(apiClient, tr, disp, log)
	defer store.Close()

	for _, t := range []dispatch.EventType{dispatch.PlayerJoined, dispatch.PlayerLeft, dispatch.GameStarted} {
		disp.On(t, func(ev dispatch.Event) {
			if ev.Message != "" {
				fmt.Println(ev.Message)
			}
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	home := domain.Coordinates{Latitude: *lat, Longitude: *lng, Timestamp: time.Now()}
	if *create {
		if err := store.CreateGame(ctx, home, *name, domain.GameConfig{}); err != nil {
			log.Fatal("create game", zap.Error(err))
		}
		v := store.Snapshot()
		fmt.Printf("created game %s, share this code to invite players\n", v.GameCode)
	} else {
		if err := store.JoinGame(ctx, *code, *name); err != nil {
			log.Fatal("join game", zap.Error(err))
		}
		fmt.Printf("joined game %s\n", *code)
	}

	poller := poll.New(store, cfg.PollInterval, log)
	go poller.Run(ctx)

	store.UpdatePosition(home)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.LeaveGame(leaveCtx); err != nil {
				log.Warn("leave game", zap.Error(err))
			}
			return
		case <-ticker.C:
			v := store.Snapshot()
			fmt.Printf("[%s] %d players", v.ConnectionStatus, len(v.Roster))
			if v.Advisory != "" {
				fmt.Printf(" (%s)", v.Advisory)
			}
			fmt.Println()
		}
	}
}
