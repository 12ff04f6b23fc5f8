package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cybermp/beacon/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "beacon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func testRecord(id, ip string, port int) registry.Record {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return registry.Record{
		Identity:      id,
		Name:          "Afterlife",
		Version:       "1.0.0",
		IP:            ip,
		Port:          port,
		Tick:          60,
		PlayerCount:   3,
		MaxPlayers:    16,
		Public:        true,
		Region:        "Global",
		FirstSeen:     now.Add(-time.Hour),
		LastHeartbeat: now,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beacon.db")

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	// Reopening must not re-apply migrations
	repo, err = New(path)
	require.NoError(t, err)
	require.NoError(t, repo.Ping())
	require.NoError(t, repo.Close())
}

func TestSaveServerReplaces(t *testing.T) {
	repo := newTestRepo(t)

	rec := testRecord("203.0.113.7:27015", "203.0.113.7", 27015)
	require.NoError(t, repo.SaveServer(rec))

	rec.Name = "Afterlife Reborn"
	rec.PlayerCount = 9
	require.NoError(t, repo.SaveServer(rec))
}

func TestHistoryAppendAndRecent(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.AppendHistory("a:1", base.Add(-2*time.Hour), 4, registry.StatusOnline))
	require.NoError(t, repo.AppendHistory("a:1", base.Add(-time.Minute), 6, registry.StatusOnline))
	require.NoError(t, repo.AppendHistory("b:2", base, 0, registry.StatusTimeout))

	rows, err := repo.RecentHistory(base.Add(-time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Newest first
	assert.Equal(t, "b:2", rows[0].ServerID)
	assert.Equal(t, registry.StatusTimeout, rows[0].Status)
	assert.Equal(t, "a:1", rows[1].ServerID)
	assert.Equal(t, 6, rows[1].PlayerCount)

	rows, err = repo.RecentHistory(base.Add(-time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b:2", rows[0].ServerID)
}

func TestBanAuditLifecycle(t *testing.T) {
	repo := newTestRepo(t)

	now := time.Now().UTC().Truncate(time.Second)
	expires := now.Add(30 * time.Minute)

	require.NoError(t, repo.RecordBan(registry.KindServer, "203.0.113.7", "cheating", now, nil))
	require.NoError(t, repo.RecordBan(registry.KindPlayer, "silverhand", "griefing", now, &expires))

	bans, err := repo.ActiveBans(now)
	require.NoError(t, err)
	require.Len(t, bans, 2)

	// Unban expires matching rows instead of deleting them
	require.NoError(t, repo.ExpireBans(registry.KindServer, "203.0.113.7", now))

	bans, err = repo.ActiveBans(now)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, registry.KindPlayer, bans[0].Kind)
	require.NotNil(t, bans[0].ExpiresAt)
	assert.Equal(t, expires.Unix(), bans[0].ExpiresAt.Unix())

	// Timed bans age out of the active listing on their own
	bans, err = repo.ActiveBans(now.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, bans)
}

func TestWriterFlushesOnStop(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	writer := NewWriter(repo)
	writer.Start()
	writer.SaveServer(testRecord("203.0.113.7:27015", "203.0.113.7", 27015))
	writer.AppendHistory("203.0.113.7:27015", now, 3, registry.StatusOnline)
	writer.RecordBan(registry.KindPlayer, "silverhand", "griefing", now, nil)
	writer.ExpireBans(registry.KindPlayer, "silverhand", now.Add(time.Second))
	writer.Stop()

	rows, err := repo.RecentHistory(now.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].PlayerCount)

	bans, err := repo.ActiveBans(now.Add(2 * time.Second))
	require.NoError(t, err)
	assert.Empty(t, bans)
}

func TestWriterOrdersSameTargetWrites(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	// Each ban is lifted right after it is recorded. If the expiry UPDATE
	// ever overtakes its INSERT, the row lands permanently active and the
	// unbanned target shows up in the active listing forever.
	writer := NewWriter(repo)
	writer.Start()
	for i := 0; i < 200; i++ {
		target := fmt.Sprintf("203.0.113.%d", i)
		writer.RecordBan(registry.KindServer, target, "load test", now, nil)
		writer.ExpireBans(registry.KindServer, target, now.Add(time.Second))
	}
	writer.Stop()

	bans, err := repo.ActiveBans(now.Add(2 * time.Second))
	require.NoError(t, err)
	assert.Empty(t, bans)
}

func TestWriterDropsEnqueueAfterStop(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	writer := NewWriter(repo)
	writer.Start()
	writer.Stop()
	writer.Stop() // idempotent

	// A late event (e.g. from a sweep finishing during shutdown) must be
	// dropped, not crash the process.
	require.NotPanics(t, func() {
		writer.AppendHistory("203.0.113.7:27015", now, 0, registry.StatusTimeout)
	})

	rows, err := repo.RecentHistory(now.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
