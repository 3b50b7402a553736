package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/copperline/grantd/internal/oauth/store"
	"github.com/copperline/grantd/pkg/slogx"
)

// Housekeeper periodically deletes expired authorization codes and access
// tokens. Expiry is already enforced at read time; this only keeps the tables
// from growing without bound.
type Housekeeper struct {
	Store    store.Store
	Interval time.Duration

	stop chan struct{}
	done chan struct{}
}

// Start launches the background sweep. It returns immediately; call Stop to
// shut the worker down.
func (h *Housekeeper) Start(ctx context.Context) {
	h.stop = make(chan struct{})
	h.done = make(chan struct{})

	go h.run(ctx)
}

// Stop signals the worker and waits for the in-flight sweep to finish.
func (h *Housekeeper) Stop() {
	if h.stop == nil {
		return
	}
	close(h.stop)
	<-h.done
}

func (h *Housekeeper) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *Housekeeper) sweep(ctx context.Context) {
	log := slogx.FromContext(ctx)
	now := time.Now()

	codes, err := h.Store.AuthCodes().DeleteExpiredAuthCodes(ctx, now)
	if err != nil {
		log.Error("housekeeping: delete expired auth codes", slog.Any("error", err))
	}

	tokens, err := h.Store.AccessTokens().DeleteExpiredAccessTokens(ctx, now)
	if err != nil {
		log.Error("housekeeping: delete expired access tokens", slog.Any("error", err))
	}

	if codes > 0 || tokens > 0 {
		log.Debug("housekeeping sweep",
			slog.Int64("auth_codes", codes),
			slog.Int64("access_tokens", tokens),
		)
	}
}
