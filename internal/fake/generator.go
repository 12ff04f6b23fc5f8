// Package fake provides utilities for generating random registry data for
// testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cybermp/beacon/internal/identity"
	"github.com/cybermp/beacon/internal/registry"
	"github.com/cybermp/beacon/internal/storage"
	"github.com/rs/zerolog/log"
)

// GenerateData populates the storage with a specified number of randomized
// server records and a short heartbeat history for each.
func GenerateData(repo *storage.Repository, count int) {
	names := []string{"Afterlife", "Lizzie's Bar", "The Mox", "Konpeki Plaza", "Totentanz", "Embers"}
	versions := []string{"1.0.0", "1.0.1", "1.1.0", "1.2.0-beta"}
	tags := []string{"pvp,roleplay", "casual", "hardcore,modded", "events", ""}

	for i := 0; i < count; i++ {
		ip := fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255))
		port := 2048 + rand.Intn(30000)
		maxPlayers := 8 * (1 + rand.Intn(8))
		players := rand.Intn(maxPlayers + 1)

		lastSeen := time.Now().Add(-time.Duration(rand.Intn(600)) * time.Second)
		firstSeen := lastSeen.Add(-time.Duration(rand.Intn(72)) * time.Hour)

		rec := registry.Record{
			Identity:      identity.DeriveID(ip, port),
			Name:          fmt.Sprintf("%s #%d", names[rand.Intn(len(names))], rand.Intn(100)),
			Description:   "Generated test server",
			Version:       versions[rand.Intn(len(versions))],
			IP:            ip,
			Port:          port,
			Tick:          30 * (1 + rand.Intn(2)),
			PlayerCount:   players,
			MaxPlayers:    maxPlayers,
			Tags:          tags[rand.Intn(len(tags))],
			Public:        rand.Float32() < 0.8,
			Password:      rand.Float32() < 0.2,
			Region:        identity.ClassifyRegion(ip),
			FirstSeen:     firstSeen,
			LastHeartbeat: lastSeen,
		}

		if err := repo.SaveServer(rec); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server")
			continue
		}

		// A few heartbeats of history per server
		for j := rand.Intn(5); j >= 0; j-- {
			ts := lastSeen.Add(-time.Duration(j) * 5 * time.Minute)
			if err := repo.AppendHistory(rec.Identity, ts, rand.Intn(maxPlayers+1), registry.StatusOnline); err != nil {
				log.Warn().Err(err).Msg("Failed to generate fake history")
			}
		}
	}

	log.Info().Int("count", count).Msg("Fake data generated")
}
