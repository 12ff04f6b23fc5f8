package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cybermp/beacon/internal/models"
	"github.com/cybermp/beacon/internal/registry"
	"github.com/rs/zerolog/log"
)

// handleBan applies a server or player ban. A server ban also purges every
// registry record announced from the banned origin.
func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBanRequest(w, r)
	if !ok {
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "No reason provided"
	}

	err := s.reg.BanTarget(req.Type, req.Target, reason, time.Duration(req.Duration)*time.Minute)
	if err != nil {
		s.respondBanError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Ban applied successfully",
	})
}

// handleUnban lifts an active ban. Lifting a ban that does not exist is a
// no-op success.
func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBanRequest(w, r)
	if !ok {
		return
	}

	if err := s.reg.UnbanTarget(req.Type, req.Target); err != nil {
		s.respondBanError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Ban lifted successfully",
	})
}

// handleListBans returns every ban still in force, from the audit log.
func (s *Server) handleListBans(w http.ResponseWriter, _ *http.Request) {
	rows, err := s.repo.ActiveBans(time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch bans")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Database Error"})
		return
	}

	bans := make([]models.BanView, 0, len(rows))
	for _, row := range rows {
		view := models.BanView{
			Type:        row.Kind,
			Target:      row.Target,
			Reason:      row.Reason,
			BannedAt:    row.BannedAt.Unix(),
			IsPermanent: row.ExpiresAt == nil,
		}
		if row.ExpiresAt != nil {
			expires := row.ExpiresAt.Unix()
			view.ExpiresAt = &expires
		}
		bans = append(bans, view)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"bans": bans})
}

// decodeBanRequest parses the JSON body shared by ban and unban.
func (s *Server) decodeBanRequest(w http.ResponseWriter, r *http.Request) (*models.BanRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req models.BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return nil, false
	}

	return &req, true
}

func (s *Server) respondBanError(w http.ResponseWriter, err error) {
	var validation *registry.ValidationError
	if errors.As(err, &validation) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
		return
	}

	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
