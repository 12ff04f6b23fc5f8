package server

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cybermp/beacon/internal/models"
	"github.com/cybermp/beacon/internal/registry"
	"github.com/cybermp/beacon/internal/vars"
	"github.com/rs/zerolog/log"
)

// handleRoot returns service information and the endpoint map.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	view := s.reg.ComputeStats()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"server":               vars.Name + " Master Server",
		"version":              vars.Version,
		"build":                vars.Info(),
		"uptime_seconds":       view.UptimeSeconds,
		"online_servers":       view.OnlineServers,
		"total_servers":        view.TotalServers,
		"total_players_online": view.PlayersOnline,
		"endpoints": map[string]string{
			"announce": "/announce",
			"servers":  "/servers",
			"stats":    "/stats",
			"health":   "/health",
		},
	})
}

// handleListServers serves the filtered, ranked server browser list.
// Query params: include_offline, region, version, has_players, public_only.
func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	filters := registry.Filters{
		IncludeOffline: boolParam(params.Get("include_offline"), false),
		Region:         strings.TrimSpace(params.Get("region")),
		Version:        strings.TrimSpace(params.Get("version")),
		HasPlayers:     boolParam(params.Get("has_players"), false),
		PublicOnly:     boolParam(params.Get("public_only"), true),
	}

	records, now := s.reg.ListServers(filters)

	views := make([]models.ServerView, 0, len(records))
	for i := range records {
		views = append(views, models.NewServerView(&records[i], now))
	}

	respondJSON(w, http.StatusOK, models.ServerListResponse{
		Servers:   views,
		Total:     len(views),
		Timestamp: now.Unix(),
		FiltersApplied: models.FiltersApplied{
			IncludeOffline: filters.IncludeOffline,
			Region:         filters.Region,
			Version:        filters.Version,
			HasPlayers:     filters.HasPlayers,
			PublicOnly:     filters.PublicOnly,
		},
	})
}

// handleServerDetail returns the full record for one server identity.
func (s *Server) handleServerDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := s.reg.Get(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "Server not found"})
			return
		}
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	now := time.Now()
	respondJSON(w, http.StatusOK, models.ServerDetail{
		ServerView: models.NewServerView(rec, now),
		IsOnline:   rec.Online(now, s.reg.LivenessWindow()),
		FirstSeen:  rec.FirstSeen.Unix(),
	})
}

// handleMasterStats returns aggregate master server statistics.
func (s *Server) handleMasterStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, models.NewMasterStatsResponse(s.reg.ComputeStats()))
}

// handleServerHistory returns recent per-server history from the database,
// grouped by server identity.
func (s *Server) handleServerHistory(w http.ResponseWriter, _ *http.Request) {
	rows, err := s.repo.RecentHistory(time.Now().Add(-s.historyWindow), s.historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch server history")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database Error"})
		return
	}

	history := make(map[string][]models.HistoryPoint)
	for _, row := range rows {
		history[row.ServerID] = append(history[row.ServerID], models.HistoryPoint{
			Timestamp:   row.Timestamp.Unix(),
			PlayerCount: row.PlayerCount,
			Status:      row.Status,
		})
	}

	respondJSON(w, http.StatusOK, models.ServerHistoryResponse{
		ServerHistory: history,
		Timeframe:     "24_hours",
	})
}

// handlePlayerStats returns player aggregates over the live set.
func (s *Server) handlePlayerStats(w http.ResponseWriter, _ *http.Request) {
	view := s.reg.ComputePlayerStats()

	resp := models.PlayerStatsResponse{
		TotalPlayersOnline:      view.PlayersOnline,
		AveragePlayersPerServer: math.Round(view.AveragePerServer*100) / 100,
		ServersWithPlayers:      view.ServersWithPlayers,
	}
	if view.MostPopulated != nil {
		top := models.NewServerView(view.MostPopulated, time.Now())
		resp.MostPopulatedServer = &top
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleHealth reports process and database health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	view := s.reg.ComputeStats()

	health := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": view.UptimeSeconds,
		"online_servers": view.OnlineServers,
		"database_ok":    true,
		"timestamp":      view.Timestamp.Unix(),
	}

	status := http.StatusOK
	if err := s.repo.Ping(); err != nil {
		log.Error().Err(err).Msg("Health check database ping failed")
		health["database_ok"] = false
		health["status"] = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, health)
}

// boolParam parses a query flag the way launchers send it: the literal
// string "true" (any case) enables it, any other non-empty value disables
// it, and an absent value keeps the default.
func boolParam(val string, fallback bool) bool {
	if val == "" {
		return fallback
	}

	return strings.EqualFold(val, "true")
}
