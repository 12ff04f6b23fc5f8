package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweep runs one expiry cycle: records whose last heartbeat exceeds the
// expiry window are removed and a terminal timeout event is logged for each.
// Returns the number of purged records.
func (r *Registry) Sweep() int {
	now := r.now()

	var expired []string
	for _, rec := range r.Snapshot() {
		if now.Sub(rec.LastHeartbeat) > r.expiry {
			expired = append(expired, rec.Identity)
		}
	}

	for _, id := range expired {
		r.Remove(id)
		r.sink.AppendHistory(id, now, 0, StatusTimeout)

		log.Info().Str("identity", id).Msg("Removing inactive server")
	}

	return len(expired)
}

// RunSweeper runs Sweep on a fixed interval until the context is cancelled.
// A failing cycle never stops the loop; the next one runs on schedule.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("Expiry sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Expiry sweeper stopped")
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Info().Int("purged", n).Msg("Sweep cycle finished")
			} else {
				log.Debug().Msg("Sweep cycle finished, nothing to purge")
			}
		}
	}
}
