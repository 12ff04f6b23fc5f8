// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"net/http"

	"github.com/cybermp/beacon/internal/config"
	"github.com/cybermp/beacon/internal/registry"
	"github.com/cybermp/beacon/internal/storage"
)

// New creates a new Server instance over the registry and repository.
func New(reg *registry.Registry, repo *storage.Repository, cfg *config.Config) *Server {
	return &Server{
		reg:           reg,
		repo:          repo,
		maxBody:       cfg.Server.MaxBodySize,
		trustProxy:    cfg.Server.TrustProxy,
		limitCount:    cfg.RateLimit.Count,
		limitWin:      cfg.RateLimit.Window,
		historyLimit:  cfg.Storage.HistoryLimit,
		historyWindow: cfg.Storage.HistoryWindow,
	}
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /announce", s.RateLimitMiddleware(http.HandlerFunc(s.handleAnnounce)))

	mux.HandleFunc("GET /servers", s.handleListServers)
	mux.HandleFunc("GET /list", s.handleListServers) // launcher compatibility alias
	mux.HandleFunc("GET /servers/{id}", s.handleServerDetail)

	mux.HandleFunc("GET /stats", s.handleMasterStats)
	mux.HandleFunc("GET /stats/servers", s.handleServerHistory)
	mux.HandleFunc("GET /stats/players", s.handlePlayerStats)

	mux.HandleFunc("POST /admin/ban", s.handleBan)
	mux.HandleFunc("POST /admin/unban", s.handleUnban)
	mux.HandleFunc("GET /admin/bans", s.handleListBans)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.LoggingMiddleware(CORSMiddleware(mux))
}
