// Package geoip refines coarse region tags into ISO country codes using a
// MaxMind database, and keeps a local copy of that database fresh.
package geoip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// downloadTimeout bounds one database fetch end to end.
const downloadTimeout = 5 * time.Minute

// EnsureDB makes sure a database file exists at path and is newer than
// maxAge, downloading a fresh copy from url when it is missing or stale.
func EnsureDB(path, url string, maxAge time.Duration) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && time.Since(info.ModTime()) < maxAge:
		log.Debug().Str("path", path).Msg("GeoIP database is fresh")
		return nil
	case err == nil:
		log.Info().Str("path", path).Msg("GeoIP database is stale, refreshing")
	case os.IsNotExist(err):
		log.Info().Str("path", path).Str("url", url).Msg("GeoIP database missing, downloading")
	default:
		return err
	}

	return fetchDB(path, url)
}

// fetchDB downloads the database into a sibling temp file and renames it over
// the target, so a failed or partial download never clobbers a working copy.
func fetchDB(path, url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geoip download: unexpected status %s", resp.Status)
	}

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
