// Package models defines the JSON payload shapes exposed by the HTTP API.
package models

import (
	"strings"
	"time"

	"github.com/cybermp/beacon/internal/registry"
)

// ServerView is the browser representation of one server record.
type ServerView struct {
	ServerID          string   `json:"server_id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	IconURL           string   `json:"icon_url"`
	Version           string   `json:"version"`
	IP                string   `json:"ip"`
	Tags              []string `json:"tags"`
	Region            string   `json:"region"`
	Flags             int64    `json:"flags"`
	LastSeen          int64    `json:"last_seen"`
	Port              int      `json:"port"`
	TickRate          int      `json:"tick_rate"`
	PlayerCount       int      `json:"player_count"`
	MaxPlayerCount    int      `json:"max_player_count"`
	UptimeMinutes     int      `json:"uptime_minutes"`
	Ping              int      `json:"ping"`
	Public            bool     `json:"public"`
	PasswordProtected bool     `json:"password_protected"`
}

// NewServerView renders a registry record for the browser list.
func NewServerView(rec *registry.Record, now time.Time) ServerView {
	tags := []string{}
	if rec.Tags != "" {
		tags = strings.Split(rec.Tags, ",")
	}

	return ServerView{
		ServerID:          rec.Identity,
		Name:              rec.Name,
		Description:       rec.Description,
		IconURL:           rec.IconURL,
		Version:           rec.Version,
		IP:                rec.IP,
		Port:              rec.Port,
		TickRate:          rec.Tick,
		PlayerCount:       rec.PlayerCount,
		MaxPlayerCount:    rec.MaxPlayers,
		Tags:              tags,
		Public:            rec.Public,
		PasswordProtected: rec.Password,
		Flags:             rec.Flags,
		LastSeen:          rec.LastHeartbeat.Unix(),
		UptimeMinutes:     rec.UptimeMinutes(),
		Region:            rec.Region,
		Ping:              rec.Ping(now),
	}
}

// ServerDetail extends ServerView with creation time and liveness.
type ServerDetail struct {
	ServerView

	FirstSeen int64 `json:"first_seen"`
	IsOnline  bool  `json:"is_online"`
}

// FiltersApplied echoes the browser filters back to the client.
type FiltersApplied struct {
	Region         string `json:"region"`
	Version        string `json:"version"`
	IncludeOffline bool   `json:"include_offline"`
	HasPlayers     bool   `json:"has_players"`
	PublicOnly     bool   `json:"public_only"`
}

// ServerListResponse is the browser list payload.
type ServerListResponse struct {
	Servers        []ServerView   `json:"servers"`
	FiltersApplied FiltersApplied `json:"filters_applied"`
	Total          int            `json:"total"`
	Timestamp      int64          `json:"timestamp"`
}

// MasterServerStats covers lifetime process counters.
type MasterServerStats struct {
	UptimeSeconds      int64   `json:"uptime_seconds"`
	UptimeHours        float64 `json:"uptime_hours"`
	TotalAnnouncements uint64  `json:"total_announcements"`
	TotalQueries       uint64  `json:"total_queries"`
	TotalRegistrations uint64  `json:"total_servers_registered"`
}

// CurrentStats covers the live set at one instant.
type CurrentStats struct {
	OnlineServers      int   `json:"online_servers"`
	TotalPlayersOnline int   `json:"total_players_online"`
	Timestamp          int64 `json:"timestamp"`
}

// PeakStats covers lifetime high-water marks.
type PeakStats struct {
	MaxServers int `json:"max_servers"`
	MaxPlayers int `json:"max_players"`
}

// ServerBreakdown categorizes the live set.
type ServerBreakdown struct {
	PublicServers     int `json:"public_servers"`
	PrivateServers    int `json:"private_servers"`
	PasswordProtected int `json:"password_protected"`
	EmptyServers      int `json:"empty_servers"`
	FullServers       int `json:"full_servers"`
}

// MasterStatsResponse is the /stats payload.
type MasterStatsResponse struct {
	Regions         map[string]int    `json:"regions"`
	Versions        map[string]int    `json:"versions"`
	MasterServer    MasterServerStats `json:"master_server"`
	Current         CurrentStats      `json:"current"`
	Peaks           PeakStats         `json:"peaks"`
	ServerBreakdown ServerBreakdown   `json:"server_breakdown"`
}

// NewMasterStatsResponse renders a registry overview.
func NewMasterStatsResponse(view registry.Overview) MasterStatsResponse {
	return MasterStatsResponse{
		MasterServer: MasterServerStats{
			UptimeSeconds:      view.UptimeSeconds,
			UptimeHours:        float64(view.UptimeSeconds) / 3600,
			TotalAnnouncements: view.TotalAnnouncements,
			TotalQueries:       view.TotalQueries,
			TotalRegistrations: view.TotalRegistrations,
		},
		Current: CurrentStats{
			OnlineServers:      view.OnlineServers,
			TotalPlayersOnline: view.PlayersOnline,
			Timestamp:          view.Timestamp.Unix(),
		},
		Peaks: PeakStats{
			MaxServers: view.PeakServers,
			MaxPlayers: view.PeakPlayers,
		},
		ServerBreakdown: ServerBreakdown{
			PublicServers:     view.PublicServers,
			PrivateServers:    view.PrivateServers,
			PasswordProtected: view.PasswordProtected,
			EmptyServers:      view.EmptyServers,
			FullServers:       view.FullServers,
		},
		Regions:  view.Regions,
		Versions: view.Versions,
	}
}

// PlayerStatsResponse is the /stats/players payload.
type PlayerStatsResponse struct {
	MostPopulatedServer     *ServerView `json:"most_populated_server"`
	TotalPlayersOnline      int         `json:"total_players_online"`
	AveragePlayersPerServer float64     `json:"average_players_per_server"`
	ServersWithPlayers      int         `json:"servers_with_players"`
}

// HistoryPoint is one history event within a server's timeline.
type HistoryPoint struct {
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
	PlayerCount int    `json:"player_count"`
}

// ServerHistoryResponse is the /stats/servers payload: recent history
// grouped by server identity.
type ServerHistoryResponse struct {
	ServerHistory map[string][]HistoryPoint `json:"server_history"`
	Timeframe     string                    `json:"timeframe"`
}

// BanView is one active ban in the administrative listing.
type BanView struct {
	ExpiresAt   *int64 `json:"expires_at"`
	Type        string `json:"type"`
	Target      string `json:"target"`
	Reason      string `json:"reason"`
	BannedAt    int64  `json:"banned_at"`
	IsPermanent bool   `json:"is_permanent"`
}

// BanRequest is the /admin/ban and /admin/unban payload.
type BanRequest struct {
	Type     string `json:"type"`
	Target   string `json:"target"`
	Reason   string `json:"reason"`
	Duration int    `json:"duration"` // minutes, 0 for permanent
}
