// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cybermp/beacon/internal/logger"
	"github.com/cybermp/beacon/internal/vars"
	"github.com/jessevdk/go-flags"
)

// Config represents the complete application flags configuration.
type Config struct {
	Server    Server        `group:"Server Options" env-namespace:"BEACON"`
	Registry  Registry      `group:"Registry Options" namespace:"registry" env-namespace:"BEACON_REGISTRY"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"BEACON_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"BEACON_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"BEACON_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"BEACON_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	Address     string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8000"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"4096"`
	TrustProxy  bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Registry holds liveness and expiry settings for the in-memory server registry.
type Registry struct {
	LivenessWindow time.Duration `long:"liveness-window" env:"LIVENESS_WINDOW" description:"Duration after the last announce during which a server is online" default:"5m"`
	ExpiryWindow   time.Duration `long:"expiry-window" env:"EXPIRY_WINDOW" description:"Duration after the last announce when a stale server is purged" default:"10m"`
	SweepInterval  time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" description:"Interval between expiry sweeps" default:"5m"`
}

// Storage holds database configuration.
type Storage struct {
	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"beacon.db"`
	HistoryLimit  int           `long:"history-limit" env:"HISTORY_LIMIT" description:"Max rows returned by the history endpoint" default:"1000"`
	HistoryWindow time.Duration `long:"history-window" env:"HISTORY_WINDOW" description:"Lookback window for the history endpoint" default:"24h"`
	GenerateCount int           `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration. An empty path disables country
// resolution and regions fall back to the coarse Local/Global heuristic.
type GeoIP struct {
	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file (empty disables GeoIP)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds announce endpoint rate limiting configuration.
type RateLimit struct {
	Count  int           `long:"count" env:"COUNT" description:"Announce limit per IP: requests count" default:"30"`
	Window time.Duration `long:"window" env:"WINDOW" description:"Announce limit per IP: window duration" default:"1m"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	// A stale record must be observable as offline before it is purged.
	if cfg.Registry.ExpiryWindow <= cfg.Registry.LivenessWindow {
		fmt.Fprintln(os.Stderr,
			"Expiry window must be longer than the liveness window!")
		os.Exit(1)
	}

	return &cfg
}
