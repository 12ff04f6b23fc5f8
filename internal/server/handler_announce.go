package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cybermp/beacon/internal/registry"
	"github.com/rs/zerolog/log"
)

// handleAnnounce processes one server announce/heartbeat. The form payload
// is parsed into a typed announce, then applied to the registry; validation
// failures and banned origins leave no trace in the registry.
func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	ip := GetRealIP(r, s.trustProxy)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseForm(); err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("Invalid announce form")
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid form payload"})
		return
	}

	a, err := parseAnnounce(r.PostForm)
	if err == nil {
		_, _, err = s.reg.Announce(ip, *a)
	}

	if err != nil {
		var validation *registry.ValidationError
		var banned *registry.BannedError

		switch {
		case errors.As(err, &validation):
			log.Debug().
				Str("ip", ip).
				Str("field", validation.Field).
				Str("reason", validation.Reason).
				Msg("Announce rejected")

			respondJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
		case errors.As(err, &banned):
			log.Warn().Str("ip", ip).Msg("Banned server attempted to announce")
			http.Error(w, "Server banned: "+banned.Reason, http.StatusForbidden)
		default:
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Server registered successfully",
	})
}

// parseAnnounce converts the raw form values into a typed announce,
// applying the documented defaults for optional fields. Conversion failures
// surface as validation errors before the registry is touched.
func parseAnnounce(form map[string][]string) (*registry.Announce, error) {
	get := func(key, fallback string) string {
		if vals, ok := form[key]; ok && len(vals) > 0 {
			return vals[0]
		}
		return fallback
	}

	for _, field := range []string{"name", "port", "version"} {
		if _, ok := form[field]; !ok {
			return nil, &registry.ValidationError{Field: field, Reason: "required"}
		}
	}

	a := &registry.Announce{
		Name:        get("name", ""),
		Description: get("desc", ""),
		IconURL:     get("icon_url", ""),
		Version:     get("version", ""),
		Tags:        get("tags", ""),
		Public:      strings.EqualFold(get("public", "true"), "true"),
		Password:    strings.EqualFold(get("pass", "false"), "true"),
	}

	numeric := []struct {
		dst      *int
		field    string
		fallback string
	}{
		{&a.Port, "port", "0"},
		{&a.Tick, "tick", "60"},
		{&a.PlayerCount, "player_count", "0"},
		{&a.MaxPlayers, "max_player_count", "10"},
	}
	for _, num := range numeric {
		val, err := strconv.Atoi(get(num.field, num.fallback))
		if err != nil {
			return nil, &registry.ValidationError{Field: num.field, Reason: "must be numeric"}
		}
		*num.dst = val
	}

	flags, err := strconv.ParseInt(get("flags", "0"), 10, 64)
	if err != nil {
		return nil, &registry.ValidationError{Field: "flags", Reason: "must be numeric"}
	}
	a.Flags = flags

	return a, nil
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
