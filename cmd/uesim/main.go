// uesim is the development backend: it implements the game HTTP API and the
// realtime channel so clients can be exercised without the production
// server.
package main

import (
	"context"
	"net/http"

	"github.com/urbanespionage/client/internal/backend/httpapi"
	"github.com/urbanespionage/client/internal/backend/hub"
	"github.com/urbanespionage/client/internal/backend/store"
	"github.com/urbanespionage/client/internal/config"
	"go.uber.org/zap"
)

func main() {
	log := zap.Must(zap.NewDevelopment())
	defer log.Sync()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	var st store.Store = store.NewMemory()
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database", zap.Error(err))
		}
		st = pg
		log.Info("using postgres store")
	}

	ctx := context.Background()
	h := hub.NewHub(ctx)

	handler := httpapi.SetupRoutes(st, h, log)

	log.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
