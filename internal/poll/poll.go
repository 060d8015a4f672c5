// Package poll keeps the session eventually consistent while realtime
// delivery is unavailable: on a fixed interval it re-fetches the full game
// over HTTP and lets the store replace its state wholesale.
package poll

import (
	"context"
	"time"

	"github.com/urbanespionage/client/internal/domain"
	"go.uber.org/zap"
)

// Source is the slice of the session store the poller needs.
type Source interface {
	ConnectionStatus() domain.ConnectionStatus
	RefreshGame(ctx context.Context) error
}

type Poller struct {
	src      Source
	interval time.Duration
	log      *zap.Logger
}

func New(src Source, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{src: src, interval: interval, log: log}
}

// Run ticks until ctx is cancelled. A tick does nothing while the transport
// is connected. The fetch runs synchronously inside the loop, so a fetch
// still in flight when the next tick fires suppresses that tick (the ticker
// drops it) and the poller can never run concurrently with itself.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.src.ConnectionStatus() == domain.ConnConnected {
				continue
			}
			fctx, cancel := context.WithTimeout(ctx, p.interval)
			err := p.src.RefreshGame(fctx)
			cancel()
			if err != nil {
				p.log.Warn("poll refresh failed", zap.Error(err))
			}
		}
	}
}
