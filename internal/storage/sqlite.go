// Package storage handles database connections, schema migrations, and data
// operations using SQLite. It is the persistence collaborator of the
// registry: server snapshots, history events and ban audit rows.
package storage

import (
	"database/sql"
	"time"

	"github.com/cybermp/beacon/internal/registry"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database connection is still usable.
func (r *Repository) Ping() error {
	return r.db.Ping()
}

// toUnix converts a time to the REAL unix-seconds representation used by the schema.
func toUnix(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

// fromUnix converts a REAL unix-seconds column value back to a time.
func fromUnix(sec float64) time.Time {
	return time.UnixMilli(int64(sec * 1000)).UTC()
}

// SaveServer inserts or replaces the persisted snapshot of a server record.
func (r *Repository) SaveServer(rec registry.Record) error {
	query := `
	REPLACE INTO servers (
		server_id, name, description, icon_url, version, ip, port,
		tick_rate, max_players, tags, public, password_protected,
		flags, region, first_seen, last_seen
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		rec.Identity, rec.Name, rec.Description, rec.IconURL, rec.Version,
		rec.IP, rec.Port, rec.Tick, rec.MaxPlayers, rec.Tags,
		boolToInt(rec.Public), boolToInt(rec.Password),
		rec.Flags, rec.Region, toUnix(rec.FirstSeen), toUnix(rec.LastHeartbeat),
	)

	return err
}

// AppendHistory appends one state transition event for a server identity.
func (r *Repository) AppendHistory(serverID string, ts time.Time, playerCount int, status string) error {
	_, err := r.db.Exec(`
		INSERT INTO server_history (server_id, timestamp, player_count, status)
		VALUES (?, ?, ?, ?)`,
		serverID, toUnix(ts), playerCount, status,
	)

	return err
}

// HistoryRow is one persisted history event.
type HistoryRow struct {
	Timestamp   time.Time `json:"timestamp"`
	ServerID    string    `json:"server_id"`
	Status      string    `json:"status"`
	PlayerCount int       `json:"player_count"`
}

// RecentHistory returns up to limit history events newer than since, newest first.
func (r *Repository) RecentHistory(since time.Time, limit int) ([]HistoryRow, error) {
	rows, err := r.db.Query(`
		SELECT server_id, timestamp, player_count, status
		FROM server_history
		WHERE timestamp > ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		toUnix(since), limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []HistoryRow
	for rows.Next() {
		var row HistoryRow
		var ts float64
		if err := rows.Scan(&row.ServerID, &ts, &row.PlayerCount, &row.Status); err != nil {
			continue
		}
		row.Timestamp = fromUnix(ts)
		events = append(events, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// RecordBan appends one ban audit row. A nil expiresAt means permanent.
func (r *Repository) RecordBan(kind, target, reason string, bannedAt time.Time, expiresAt *time.Time) error {
	var expires interface{}
	if expiresAt != nil {
		expires = toUnix(*expiresAt)
	}

	_, err := r.db.Exec(`
		INSERT INTO bans (type, target, reason, banned_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		kind, target, reason, toUnix(bannedAt), expires,
	)

	return err
}

// ExpireBans marks every currently-active audit row for (kind, target) as
// expired at asOf. Rows are never deleted, the audit trail stays intact.
func (r *Repository) ExpireBans(kind, target string, asOf time.Time) error {
	_, err := r.db.Exec(`
		UPDATE bans SET expires_at = ?
		WHERE type = ? AND target = ? AND (expires_at IS NULL OR expires_at > ?)`,
		toUnix(asOf), kind, target, toUnix(asOf),
	)

	return err
}

// BanRow is one persisted ban audit row.
type BanRow struct {
	BannedAt  time.Time
	ExpiresAt *time.Time
	Kind      string
	Target    string
	Reason    string
}

// ActiveBans returns all audit rows still in force at asOf, newest first.
func (r *Repository) ActiveBans(asOf time.Time) ([]BanRow, error) {
	rows, err := r.db.Query(`
		SELECT type, target, reason, banned_at, expires_at
		FROM bans
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY banned_at DESC`,
		toUnix(asOf),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var bans []BanRow
	for rows.Next() {
		var row BanRow
		var bannedAt float64
		var expiresAt sql.NullFloat64
		if err := rows.Scan(&row.Kind, &row.Target, &row.Reason, &bannedAt, &expiresAt); err != nil {
			continue
		}
		row.BannedAt = fromUnix(bannedAt)
		if expiresAt.Valid {
			t := fromUnix(expiresAt.Float64)
			row.ExpiresAt = &t
		}
		bans = append(bans, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bans, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
