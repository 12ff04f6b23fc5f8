package geoip

import (
	"net"

	"github.com/cybermp/beacon/internal/identity"
	"github.com/oschwald/geoip2-golang"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// CountryCode looks up the ISO country code (e.g., "US", "DE") for a given IP address string.
// It returns an empty string if the IP is invalid or the country cannot be determined.
func (p *Provider) CountryCode(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

// Resolve refines the coarse region classification with a country lookup.
// Private, loopback and unparseable origins keep their heuristic tag; publicly
// routable origins resolve to their ISO country code when the database knows it.
func (p *Provider) Resolve(origin string) string {
	region := identity.ClassifyRegion(origin)
	if p == nil || region != identity.RegionGlobal {
		return region
	}

	if code := p.CountryCode(origin); code != "" {
		return code
	}

	return region
}
