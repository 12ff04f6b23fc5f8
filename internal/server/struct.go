package server

import (
	"time"

	"github.com/cybermp/beacon/internal/registry"
	"github.com/cybermp/beacon/internal/storage"
)

// Server holds the dependencies and configuration required to handle HTTP
// requests against the registry and the persistence layer.
type Server struct {
	// reg is the authoritative in-memory registry of announced servers,
	// bans and aggregate counters.
	reg *registry.Registry

	// repo provides read access to persisted history and ban audit rows.
	// Registry writes flow through the async storage.Writer instead.
	repo *storage.Repository

	// maxBody specifies the maximum allowed size (in bytes) for incoming
	// request bodies.
	maxBody int64

	// limitCount and limitWin shape the per-IP announce rate limit.
	limitCount int
	limitWin   time.Duration

	// historyLimit and historyWindow bound the /stats/servers view.
	historyLimit  int
	historyWindow time.Duration

	// trustProxy indicates whether X-Forwarded-For and X-Real-IP headers
	// are trusted when resolving the announcing origin.
	trustProxy bool
}
