// Package registry implements the in-memory discovery registry: the
// authoritative server record store, heartbeat-driven liveness, ban
// enforcement, the filter/sort query engine and the periodic expiry sweep.
package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cybermp/beacon/internal/identity"
	"github.com/rs/zerolog/log"
)

// Default liveness and expiry windows. A record goes offline after the
// liveness window and is purged after the longer expiry window.
const (
	DefaultLivenessWindow = 5 * time.Minute
	DefaultExpiryWindow   = 10 * time.Minute
)

// Announce is the validated payload of one server announce/heartbeat.
type Announce struct {
	Name        string
	Description string
	IconURL     string
	Version     string
	Tags        string
	Flags       int64
	Port        int
	Tick        int
	PlayerCount int
	MaxPlayers  int
	Public      bool
	Password    bool
}

// validate checks field invariants. Any failure rejects the whole announce
// before the registry is touched.
func (a *Announce) validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(a.Version) == "" {
		return &ValidationError{Field: "version", Reason: "required"}
	}
	if a.Port < 1024 || a.Port > 65535 {
		return &ValidationError{Field: "port", Reason: "must be between 1024 and 65535"}
	}
	if a.Tick < 1 {
		return &ValidationError{Field: "tick", Reason: "must be positive"}
	}
	if a.PlayerCount < 0 {
		return &ValidationError{Field: "player_count", Reason: "must not be negative"}
	}
	if a.MaxPlayers < 1 {
		return &ValidationError{Field: "max_player_count", Reason: "must be at least 1"}
	}
	if a.PlayerCount > a.MaxPlayers {
		return &ValidationError{Field: "player_count", Reason: "must not exceed max_player_count"}
	}

	return nil
}

// Options configures a Registry.
type Options struct {
	// LivenessWindow and ExpiryWindow default to 5 and 10 minutes.
	LivenessWindow time.Duration
	ExpiryWindow   time.Duration

	// Sink receives write-behind persistence events. Nil means discard.
	Sink Sink

	// Region classifies an origin address into a region tag. Defaults to
	// the coarse identity.ClassifyRegion heuristic.
	Region func(origin string) string

	// Clock overrides the time source, for tests.
	Clock func() time.Time
}

// Registry is the single authoritative store of server records, ban entries
// and aggregate counters. One mutex guards all three so a ban insertion and
// the removal of matching records are observed atomically.
type Registry struct {
	mu sync.Mutex

	servers    map[string]*Record
	banServers map[string]Ban
	banPlayers map[string]Ban
	stats      Stats

	sink     Sink
	region   func(string) string
	now      func() time.Time
	liveness time.Duration
	expiry   time.Duration
}

// New creates an empty registry. It may be constructed any number of times;
// all state is owned by the returned value.
func New(opts Options) *Registry {
	if opts.LivenessWindow <= 0 {
		opts.LivenessWindow = DefaultLivenessWindow
	}
	if opts.ExpiryWindow <= 0 {
		opts.ExpiryWindow = DefaultExpiryWindow
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.Region == nil {
		opts.Region = identity.ClassifyRegion
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Registry{
		servers:    make(map[string]*Record),
		banServers: make(map[string]Ban),
		banPlayers: make(map[string]Ban),
		stats:      Stats{StartedAt: opts.Clock()},
		sink:       opts.Sink,
		region:     opts.Region,
		now:        opts.Clock,
		liveness:   opts.LivenessWindow,
		expiry:     opts.ExpiryWindow,
	}
}

// LivenessWindow returns the configured liveness window.
func (r *Registry) LivenessWindow() time.Duration {
	return r.liveness
}

// Announce validates and applies one announce from the given origin. It
// creates a new record on first contact or refreshes the existing one, and
// returns a copy of the resulting record. Announces from banned origins are
// rejected with no state change and no history event.
func (r *Registry) Announce(origin string, a Announce) (*Record, bool, error) {
	if err := a.validate(); err != nil {
		return nil, false, err
	}

	now := r.now()

	r.mu.Lock()
	if ban, ok := r.banServers[origin]; ok && ban.Active(now) {
		r.mu.Unlock()
		return nil, false, &BannedError{Reason: ban.Reason}
	}

	id := identity.DeriveID(origin, a.Port)
	rec, exists := r.servers[id]
	if !exists {
		rec = &Record{
			Identity:  id,
			IP:        origin,
			Port:      a.Port,
			FirstSeen: now,
			Region:    r.region(origin),
		}
		r.servers[id] = rec
		r.stats.TotalRegistrations++
	}

	rec.Name = identity.SanitizeText(a.Name, 200)
	rec.Description = identity.SanitizeText(a.Description, 200)
	rec.IconURL = identity.SanitizeURL(a.IconURL)
	rec.Version = identity.SanitizeText(a.Version, 200)
	rec.Tags = identity.SanitizeText(a.Tags, 200)
	rec.Tick = a.Tick
	rec.PlayerCount = a.PlayerCount
	rec.MaxPlayers = a.MaxPlayers
	rec.Public = a.Public
	rec.Password = a.Password
	rec.Flags = a.Flags
	rec.LastHeartbeat = now

	r.stats.TotalAnnouncements++

	liveServers, livePlayers := r.liveCountsLocked(now)
	if liveServers > r.stats.PeakServers {
		r.stats.PeakServers = liveServers
	}
	if livePlayers > r.stats.PeakPlayers {
		r.stats.PeakPlayers = livePlayers
	}

	snapshot := *rec
	r.mu.Unlock()

	// Persistence happens outside the lock, best effort.
	r.sink.SaveServer(snapshot)
	r.sink.AppendHistory(id, now, snapshot.PlayerCount, StatusOnline)

	if !exists {
		log.Info().
			Str("identity", id).
			Str("name", snapshot.Name).
			Str("region", snapshot.Region).
			Msg("New server registered")
	}

	return &snapshot, !exists, nil
}

// Get returns a copy of the record for an identity, or ErrNotFound.
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.servers[id]
	if !ok {
		return nil, ErrNotFound
	}

	snapshot := *rec
	return &snapshot, nil
}

// Remove unconditionally deletes the record for an identity. Used by ban
// enforcement and the expiry sweeper.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.servers, id)
	r.mu.Unlock()
}

// Snapshot returns a consistent point-in-time copy of all records, live and
// stale, ordered by identity. Callers iterate it without holding the lock.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	records := make([]Record, 0, len(r.servers))
	for _, rec := range r.servers {
		records = append(records, *rec)
	}
	r.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Identity < records[j].Identity
	})

	return records
}

// Counters returns a copy of the aggregate lifetime counters.
func (r *Registry) Counters() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats
}

// liveCountsLocked counts live servers and their players. Caller holds mu.
func (r *Registry) liveCountsLocked(now time.Time) (servers, players int) {
	for _, rec := range r.servers {
		if rec.Online(now, r.liveness) {
			servers++
			players += rec.PlayerCount
		}
	}

	return servers, players
}
