package admission

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweep forgets every name whose last admission is older than retention and
// returns how many were removed. Retention below the freshness window is
// raised to it, so names inside the window are never evicted.
func (g *Gate) Sweep(retention time.Duration) int {
	if retention < g.freshWindow {
		retention = g.freshWindow
	}

	var stale []string

	g.tsMu.Lock()
	now := g.now()
	for name, last := range g.lastUpdate {
		if now.Sub(last) >= retention {
			stale = append(stale, name)
			delete(g.lastUpdate, name)
		}
	}
	g.tsMu.Unlock()

	if len(stale) == 0 {
		return 0
	}

	// The value table is locked on its own, in the same order Evaluate uses.
	// A name re-admitted between the two sections only loses its dedupe value,
	// which costs one redundant upsert at most.
	g.valMu.Lock()
	for _, name := range stale {
		delete(g.lastValue, name)
	}
	g.valMu.Unlock()

	return len(stale)
}

// RunSweeper calls Sweep every interval until ctx is done.
// A zero retention or interval disables eviction and returns immediately.
func (g *Gate) RunSweeper(ctx context.Context, interval, retention time.Duration, log zerolog.Logger, observe func(entries int)) error {
	if interval <= 0 || retention <= 0 {
		log.Info().Msg("throttle sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Err(ctx.Err()).Msg("throttle sweeper stopped")
			return nil

		case <-ticker.C:
			removed := g.Sweep(retention)
			n := g.Len()
			if removed > 0 {
				log.Debug().Int("removed", removed).Int("remaining", n).Msg("throttle sweep")
			}
			if observe != nil {
				observe(n)
			}
		}
	}
}
