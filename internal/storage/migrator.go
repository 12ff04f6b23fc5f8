package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cybermp/beacon/assets"
	"github.com/rs/zerolog/log"
)

// runMigrations applies every embedded schema migration that has not been
// recorded yet. Files run in lexical order, each inside its own transaction,
// so a failing migration leaves the schema at the last good version.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := assets.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		applied, err := migrationApplied(db, name)
		if err != nil {
			return err
		}
		if !applied {
			pending = append(pending, name)
		}
	}
	sort.Strings(pending)

	for _, name := range pending {
		if err := applyMigration(db, name); err != nil {
			return err
		}
	}

	return nil
}

// migrationApplied reports whether a migration version is already recorded.
func migrationApplied(db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = ?", name).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
}

// applyMigration executes one migration file and records it, atomically.
func applyMigration(db *sql.DB, name string) error {
	content, err := assets.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	log.Info().Str("migration", name).Msg("Applying schema migration")

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(string(content)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		name, time.Now().UTC(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}

	return tx.Commit()
}
