package registry

import "time"

// Server status tags written to the history log.
const (
	StatusOnline  = "online"
	StatusTimeout = "timeout"
)

// Ban kinds. A server ban targets a network origin, a player ban targets
// a player identity string.
const (
	KindServer = "server"
	KindPlayer = "player"
)

// Record is the authoritative in-memory state of one announced game server.
// Identity and FirstSeen are immutable after creation; every other field is
// overwritten by each accepted announce.
type Record struct {
	FirstSeen     time.Time
	LastHeartbeat time.Time
	Identity      string
	Name          string
	Description   string
	IconURL       string
	Version       string
	IP            string
	Tags          string
	Region        string
	Flags         int64
	Port          int
	Tick          int
	PlayerCount   int
	MaxPlayers    int
	Public        bool
	Password      bool
}

// Online reports whether the record's most recent announce falls within the
// liveness window.
func (rec *Record) Online(now time.Time, window time.Duration) bool {
	return now.Sub(rec.LastHeartbeat) < window
}

// UptimeMinutes is the whole number of minutes between the first and the
// most recent accepted announce.
func (rec *Record) UptimeMinutes() int {
	return int(rec.LastHeartbeat.Sub(rec.FirstSeen) / time.Minute)
}

// Ping is a synthetic latency in milliseconds derived from heartbeat age,
// capped at 999. Display only.
func (rec *Record) Ping(now time.Time) int {
	ms := int(now.Sub(rec.LastHeartbeat) / time.Millisecond)
	if ms > 999 {
		return 999
	}
	if ms < 0 {
		return 0
	}

	return ms
}

// Ban is an active deny-list entry. A nil ExpiresAt means permanent.
type Ban struct {
	CreatedAt time.Time
	ExpiresAt *time.Time
	Kind      string
	Target    string
	Reason    string
}

// Active reports whether the ban is currently in force.
func (b Ban) Active(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// Stats holds process-wide lifetime counters and high-water marks. Counters
// only rise; peaks are recomputed from the live set on accepted announces.
type Stats struct {
	StartedAt          time.Time
	TotalRegistrations uint64
	TotalAnnouncements uint64
	TotalQueries       uint64
	PeakServers        int
	PeakPlayers        int
}

// Sink receives write-behind persistence events. Calls are issued outside
// the registry lock and must never block; failures stay inside the sink.
type Sink interface {
	SaveServer(rec Record)
	AppendHistory(identity string, ts time.Time, playerCount int, status string)
	RecordBan(kind, target, reason string, bannedAt time.Time, expiresAt *time.Time)
	ExpireBans(kind, target string, asOf time.Time)
}

type nopSink struct{}

func (nopSink) SaveServer(Record)                                       {}
func (nopSink) AppendHistory(string, time.Time, int, string)            {}
func (nopSink) RecordBan(string, string, string, time.Time, *time.Time) {}
func (nopSink) ExpireBans(string, string, time.Time)                    {}
