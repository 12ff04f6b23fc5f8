package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type historyEvent struct {
	ts      time.Time
	id      string
	status  string
	players int
}

type banEvent struct {
	bannedAt  time.Time
	expiresAt *time.Time
	kind      string
	target    string
	reason    string
}

type expireEvent struct {
	asOf   time.Time
	kind   string
	target string
}

// recordingSink captures every write-behind event for assertions.
type recordingSink struct {
	mu      sync.Mutex
	saved   []Record
	history []historyEvent
	bans    []banEvent
	expired []expireEvent
}

func (s *recordingSink) SaveServer(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, rec)
}

func (s *recordingSink) AppendHistory(id string, ts time.Time, players int, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, historyEvent{ts: ts, id: id, status: status, players: players})
}

func (s *recordingSink) RecordBan(kind, target, reason string, bannedAt time.Time, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans = append(s.bans, banEvent{bannedAt: bannedAt, expiresAt: expiresAt, kind: kind, target: target, reason: reason})
}

func (s *recordingSink) ExpireBans(kind, target string, asOf time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, expireEvent{asOf: asOf, kind: kind, target: target})
}

func (s *recordingSink) historyEvents() []historyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]historyEvent(nil), s.history...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T) (*Registry, *recordingSink, *fakeClock) {
	t.Helper()

	sink := &recordingSink{}
	clock := newFakeClock()
	reg := New(Options{
		LivenessWindow: 5 * time.Minute,
		ExpiryWindow:   10 * time.Minute,
		Sink:           sink,
		Clock:          clock.Now,
	})

	return reg, sink, clock
}

func validAnnounce() Announce {
	return Announce{
		Name:        "Afterlife",
		Version:     "1.0.0",
		Port:        27015,
		Tick:        60,
		PlayerCount: 3,
		MaxPlayers:  16,
		Public:      true,
	}
}

func TestAnnounceRegistersNewServer(t *testing.T) {
	reg, sink, clock := newTestRegistry(t)

	rec, isNew, err := reg.Announce("203.0.113.7", validAnnounce())
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "203.0.113.7:27015", rec.Identity)
	assert.Equal(t, "Global", rec.Region)
	assert.Equal(t, clock.Now(), rec.FirstSeen)
	assert.Equal(t, clock.Now(), rec.LastHeartbeat)

	stats := reg.Counters()
	assert.Equal(t, uint64(1), stats.TotalRegistrations)
	assert.Equal(t, uint64(1), stats.TotalAnnouncements)
	assert.Equal(t, 1, stats.PeakServers)
	assert.Equal(t, 3, stats.PeakPlayers)

	events := sink.historyEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "203.0.113.7:27015", events[0].id)
	assert.Equal(t, StatusOnline, events[0].status)
	assert.Equal(t, 3, events[0].players)
}

func TestRepeatAnnounceKeepsIdentity(t *testing.T) {
	reg, _, clock := newTestRegistry(t)

	first, isNew, err := reg.Announce("203.0.113.7", validAnnounce())
	require.NoError(t, err)
	require.True(t, isNew)

	clock.Advance(time.Minute)
	update := validAnnounce()
	update.Name = "Afterlife Reborn"
	update.PlayerCount = 9

	second, isNew, err := reg.Announce("203.0.113.7", update)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.Identity, second.Identity)
	assert.Equal(t, first.FirstSeen, second.FirstSeen)
	assert.Equal(t, clock.Now(), second.LastHeartbeat)
	assert.Equal(t, "Afterlife Reborn", second.Name)
	assert.Equal(t, 1, second.UptimeMinutes())

	assert.Len(t, reg.Snapshot(), 1)

	stats := reg.Counters()
	assert.Equal(t, uint64(1), stats.TotalRegistrations)
	assert.Equal(t, uint64(2), stats.TotalAnnouncements)
}

func TestAnnounceSanitizesFields(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	a := validAnnounce()
	a.Name = "  Night\x00City \x1f"
	a.Description = "best\x7fserver"
	a.IconURL = "ftp://nope/icon.png"
	a.Tags = " pvp,roleplay "

	rec, _, err := reg.Announce("203.0.113.7", a)
	require.NoError(t, err)
	assert.Equal(t, "NightCity", rec.Name)
	assert.Equal(t, "bestserver", rec.Description)
	assert.Equal(t, "", rec.IconURL)
	assert.Equal(t, "pvp,roleplay", rec.Tags)
}

func TestAnnounceValidationAtomicity(t *testing.T) {
	reg, sink, _ := newTestRegistry(t)

	bad := []Announce{
		{Version: "1.0.0", Port: 27015, Tick: 60, MaxPlayers: 10},                                       // missing name
		{Name: "x", Port: 27015, Tick: 60, MaxPlayers: 10},                                              // missing version
		{Name: "x", Version: "1.0.0", Port: 80, Tick: 60, MaxPlayers: 10},                               // port too low
		{Name: "x", Version: "1.0.0", Port: 70000, Tick: 60, MaxPlayers: 10},                            // port too high
		{Name: "x", Version: "1.0.0", Port: 27015, Tick: 0, MaxPlayers: 10},                             // bad tick
		{Name: "x", Version: "1.0.0", Port: 27015, Tick: 60, PlayerCount: -1, MaxPlayers: 10},           // negative players
		{Name: "x", Version: "1.0.0", Port: 27015, Tick: 60, MaxPlayers: 0},                             // max below 1
		{Name: "x", Version: "1.0.0", Port: 27015, Tick: 60, PlayerCount: 11, MaxPlayers: 10},           // players above max
	}

	// Rejection is idempotent: repeating it never mutates state
	for i := 0; i < 2; i++ {
		for _, a := range bad {
			_, _, err := reg.Announce("203.0.113.7", a)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
		}
	}

	assert.Empty(t, reg.Snapshot())
	assert.Empty(t, sink.historyEvents())

	stats := reg.Counters()
	assert.Zero(t, stats.TotalRegistrations)
	assert.Zero(t, stats.TotalAnnouncements)
}

func TestBanPrecedence(t *testing.T) {
	reg, sink, _ := newTestRegistry(t)

	rec, _, err := reg.Announce("203.0.113.7", validAnnounce())
	require.NoError(t, err)

	require.NoError(t, reg.BanTarget(KindServer, "203.0.113.7", "cheating", 0))
	assert.True(t, reg.OriginBanned("203.0.113.7"))

	_, err = reg.Get(rec.Identity)
	assert.ErrorIs(t, err, ErrNotFound)

	before := len(sink.historyEvents())
	_, _, err = reg.Announce("203.0.113.7", validAnnounce())
	var banned *BannedError
	require.ErrorAs(t, err, &banned)
	assert.Equal(t, "cheating", banned.Reason)
	assert.Empty(t, reg.Snapshot())
	assert.Len(t, sink.historyEvents(), before, "rejected announce must not log history")

	require.NoError(t, reg.UnbanTarget(KindServer, "203.0.113.7"))
	assert.False(t, reg.OriginBanned("203.0.113.7"))

	_, isNew, err := reg.Announce("203.0.113.7", validAnnounce())
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestBanOriginRemovesAllPorts(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	a := validAnnounce()
	_, _, err := reg.Announce("203.0.113.7", a)
	require.NoError(t, err)

	a.Port = 27016
	_, _, err = reg.Announce("203.0.113.7", a)
	require.NoError(t, err)

	_, _, err = reg.Announce("203.0.113.8", a)
	require.NoError(t, err)

	require.NoError(t, reg.BanTarget(KindServer, "203.0.113.7", "abuse", 0))

	records := reg.Snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "203.0.113.8", records[0].IP)
}

func TestBanExpires(t *testing.T) {
	reg, _, clock := newTestRegistry(t)

	require.NoError(t, reg.BanTarget(KindServer, "203.0.113.7", "cooling off", 30*time.Minute))
	assert.True(t, reg.OriginBanned("203.0.113.7"))

	_, _, err := reg.Announce("203.0.113.7", validAnnounce())
	var banned *BannedError
	require.ErrorAs(t, err, &banned)

	clock.Advance(31 * time.Minute)
	assert.False(t, reg.OriginBanned("203.0.113.7"))

	_, _, err = reg.Announce("203.0.113.7", validAnnounce())
	assert.NoError(t, err)
}

func TestPlayerBan(t *testing.T) {
	reg, sink, _ := newTestRegistry(t)

	require.NoError(t, reg.BanTarget(KindPlayer, "silverhand", "griefing", 0))
	assert.True(t, reg.PlayerBanned("silverhand"))
	assert.False(t, reg.PlayerBanned("someone-else"))

	require.NoError(t, reg.UnbanTarget(KindPlayer, "silverhand"))
	assert.False(t, reg.PlayerBanned("silverhand"))

	require.Len(t, sink.bans, 1)
	require.Len(t, sink.expired, 1)
	assert.Equal(t, KindPlayer, sink.expired[0].kind)
}

func TestUnbanIdempotent(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	require.NoError(t, reg.UnbanTarget(KindPlayer, "never-banned"))
	require.NoError(t, reg.UnbanTarget(KindPlayer, "never-banned"))
	assert.False(t, reg.PlayerBanned("never-banned"))
}

func TestBanRejectsUnknownKind(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	var validation *ValidationError
	require.ErrorAs(t, reg.BanTarget("vehicle", "x", "y", 0), &validation)
	require.ErrorAs(t, reg.BanTarget(KindServer, "", "y", 0), &validation)
	require.ErrorAs(t, reg.UnbanTarget("vehicle", "x"), &validation)
}

func TestLivenessWindow(t *testing.T) {
	reg, _, clock := newTestRegistry(t)

	rec, _, err := reg.Announce("203.0.113.7", validAnnounce())
	require.NoError(t, err)
	assert.True(t, rec.Online(clock.Now(), reg.LivenessWindow()))

	// Liveness flips off once the window elapses, with no explicit call
	clock.Advance(5 * time.Minute)
	got, err := reg.Get(rec.Identity)
	require.NoError(t, err)
	assert.False(t, got.Online(clock.Now(), reg.LivenessWindow()))

	// Still present until the expiry sweep purges it
	assert.Len(t, reg.Snapshot(), 1)
}

func TestRoundTripBanUnbanPlayer(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, _, err := reg.Announce("203.0.113.7", validAnnounce())
	require.NoError(t, err)

	before, _ := reg.ListServers(DefaultFilters())
	require.Len(t, before, 1)

	require.NoError(t, reg.BanTarget(KindPlayer, "silverhand", "griefing", 0))
	during, _ := reg.ListServers(DefaultFilters())
	require.NoError(t, reg.UnbanTarget(KindPlayer, "silverhand"))
	after, _ := reg.ListServers(DefaultFilters())

	// Player bans gate nothing in the browser view
	assert.Equal(t, before, during)
	assert.Equal(t, before, after)
}

func TestRegionClassifiedAtCreationOnly(t *testing.T) {
	calls := 0
	reg := New(Options{
		Sink:  &recordingSink{},
		Clock: newFakeClock().Now,
		Region: func(string) string {
			calls++
			return "Testland"
		},
	})

	_, _, err := reg.Announce("203.0.113.7", validAnnounce())
	require.NoError(t, err)
	_, _, err = reg.Announce("203.0.113.7", validAnnounce())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)

	rec, err := reg.Get("203.0.113.7:27015")
	require.NoError(t, err)
	assert.Equal(t, "Testland", rec.Region)
}
