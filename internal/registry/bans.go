package registry

import (
	"time"

	"github.com/rs/zerolog/log"
)

// BanTarget inserts or overwrites an active ban. A zero duration means
// permanent. A server ban also removes every registry record announced from
// that origin, under the same lock as the ban insertion, so a concurrent
// announce can never slip in between.
func (r *Registry) BanTarget(kind, target, reason string, duration time.Duration) error {
	if kind != KindServer && kind != KindPlayer {
		return &ValidationError{Field: "type", Reason: "must be server or player"}
	}
	if target == "" {
		return &ValidationError{Field: "target", Reason: "required"}
	}

	now := r.now()
	ban := Ban{
		Kind:      kind,
		Target:    target,
		Reason:    reason,
		CreatedAt: now,
	}
	if duration > 0 {
		expires := now.Add(duration)
		ban.ExpiresAt = &expires
	}

	var removed int

	r.mu.Lock()
	switch kind {
	case KindServer:
		r.banServers[target] = ban
		for id, rec := range r.servers {
			if rec.IP == target {
				delete(r.servers, id)
				removed++
			}
		}
	case KindPlayer:
		r.banPlayers[target] = ban
	}
	r.mu.Unlock()

	r.sink.RecordBan(kind, target, reason, now, ban.ExpiresAt)

	log.Info().
		Str("type", kind).
		Str("target", target).
		Str("reason", reason).
		Int("removed", removed).
		Msg("Ban applied")

	return nil
}

// UnbanTarget lifts an active ban. It is idempotent: lifting a ban that was
// never applied is a no-op success. Audit rows are expired, not deleted.
func (r *Registry) UnbanTarget(kind, target string) error {
	if kind != KindServer && kind != KindPlayer {
		return &ValidationError{Field: "type", Reason: "must be server or player"}
	}
	if target == "" {
		return &ValidationError{Field: "target", Reason: "required"}
	}

	now := r.now()

	r.mu.Lock()
	switch kind {
	case KindServer:
		delete(r.banServers, target)
	case KindPlayer:
		delete(r.banPlayers, target)
	}
	r.mu.Unlock()

	r.sink.ExpireBans(kind, target, now)

	log.Info().
		Str("type", kind).
		Str("target", target).
		Msg("Ban lifted")

	return nil
}

// OriginBanned reports whether announces from the origin are rejected.
func (r *Registry) OriginBanned(origin string) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	ban, ok := r.banServers[origin]
	return ok && ban.Active(now)
}

// PlayerBanned reports whether the player identity is denied.
func (r *Registry) PlayerBanned(playerID string) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	ban, ok := r.banPlayers[playerID]
	return ok && ban.Active(now)
}
