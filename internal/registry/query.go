package registry

import (
	"sort"
	"strings"
	"time"
)

// Filters selects the servers returned by ListServers. The zero value with
// PublicOnly set matches the browser defaults: live public servers only.
type Filters struct {
	Region         string
	Version        string
	IncludeOffline bool
	HasPlayers     bool
	PublicOnly     bool
}

// DefaultFilters returns the browser defaults.
func DefaultFilters() Filters {
	return Filters{PublicOnly: true}
}

// ListServers builds the filtered, ranked browser view: matching records
// sorted by player count descending, name ascending on ties. Every call
// counts as one query. The snapshot is taken under the lock and the
// filtering and sorting run outside it.
func (r *Registry) ListServers(f Filters) ([]Record, time.Time) {
	now := r.now()

	r.mu.Lock()
	r.stats.TotalQueries++
	records := make([]Record, 0, len(r.servers))
	for _, rec := range r.servers {
		records = append(records, *rec)
	}
	r.mu.Unlock()

	matched := records[:0]
	for _, rec := range records {
		if !f.IncludeOffline && !rec.Online(now, r.liveness) {
			continue
		}
		if f.Region != "" && !strings.EqualFold(rec.Region, f.Region) {
			continue
		}
		if f.Version != "" && rec.Version != f.Version {
			continue
		}
		if f.HasPlayers && rec.PlayerCount == 0 {
			continue
		}
		if f.PublicOnly && !rec.Public {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].PlayerCount != matched[j].PlayerCount {
			return matched[i].PlayerCount > matched[j].PlayerCount
		}
		return matched[i].Name < matched[j].Name
	})

	return matched, now
}

// Overview is a mutually consistent statistics view: every field derives
// from the same instant and the same snapshot.
type Overview struct {
	Timestamp          time.Time
	Regions            map[string]int
	Versions           map[string]int
	UptimeSeconds      int64
	TotalRegistrations uint64
	TotalAnnouncements uint64
	TotalQueries       uint64
	TotalServers       int
	OnlineServers      int
	PlayersOnline      int
	PeakServers        int
	PeakPlayers        int
	PublicServers      int
	PrivateServers     int
	PasswordProtected  int
	EmptyServers       int
	FullServers        int
}

// ComputeStats derives server-level aggregate statistics from one atomic
// snapshot of the registry and its lifetime counters.
func (r *Registry) ComputeStats() Overview {
	now := r.now()

	r.mu.Lock()
	stats := r.stats
	records := make([]Record, 0, len(r.servers))
	for _, rec := range r.servers {
		records = append(records, *rec)
	}
	r.mu.Unlock()

	view := Overview{
		Timestamp:          now,
		Regions:            make(map[string]int),
		Versions:           make(map[string]int),
		UptimeSeconds:      int64(now.Sub(stats.StartedAt) / time.Second),
		TotalRegistrations: stats.TotalRegistrations,
		TotalAnnouncements: stats.TotalAnnouncements,
		TotalQueries:       stats.TotalQueries,
		TotalServers:       len(records),
		PeakServers:        stats.PeakServers,
		PeakPlayers:        stats.PeakPlayers,
	}

	for _, rec := range records {
		if !rec.Online(now, r.liveness) {
			continue
		}

		view.OnlineServers++
		view.PlayersOnline += rec.PlayerCount
		view.Regions[rec.Region]++
		view.Versions[rec.Version]++

		if rec.Public {
			view.PublicServers++
		} else {
			view.PrivateServers++
		}
		if rec.Password {
			view.PasswordProtected++
		}
		if rec.PlayerCount == 0 {
			view.EmptyServers++
		}
		if rec.PlayerCount >= rec.MaxPlayers {
			view.FullServers++
		}
	}

	return view
}

// PlayerOverview aggregates player counts over the live set.
type PlayerOverview struct {
	// MostPopulated is the live server with the highest player count, the
	// first maximum encountered in snapshot order. Nil when nothing is live.
	MostPopulated *Record

	PlayersOnline      int
	AveragePerServer   float64
	ServersWithPlayers int
}

// ComputePlayerStats derives player-level aggregates from one snapshot.
func (r *Registry) ComputePlayerStats() PlayerOverview {
	now := r.now()
	records := r.Snapshot()

	var view PlayerOverview
	var live int

	for i := range records {
		rec := &records[i]
		if !rec.Online(now, r.liveness) {
			continue
		}

		live++
		view.PlayersOnline += rec.PlayerCount
		if rec.PlayerCount > 0 {
			view.ServersWithPlayers++
		}
		if view.MostPopulated == nil || rec.PlayerCount > view.MostPopulated.PlayerCount {
			snapshot := *rec
			view.MostPopulated = &snapshot
		}
	}

	if live > 0 {
		view.AveragePerServer = float64(view.PlayersOnline) / float64(live)
	}

	return view
}
