// Package identity derives stable server identities and normalizes
// untrusted text fields from announce payloads.
package identity

import (
	"fmt"
	"net/netip"
	"strings"
)

// Region classification values returned by ClassifyRegion.
const (
	RegionLocal   = "Local"
	RegionGlobal  = "Global"
	RegionUnknown = "Unknown"
)

// DeriveID builds the stable identity key for a server instance.
// Two announces from the same origin and port are the same logical server,
// even across restarts.
func DeriveID(origin string, port int) string {
	return fmt.Sprintf("%s:%d", origin, port)
}

// SanitizeText strips control characters, truncates to maxLen runes and
// trims surrounding whitespace. Empty input yields empty output.
func SanitizeText(raw string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			return -1
		}
		return r
	}, raw)

	runes := []rune(cleaned)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	return strings.TrimSpace(string(runes))
}

// SanitizeURL sanitizes a URL field. Anything that does not start with
// http:// or https:// after cleanup is discarded, not an error.
func SanitizeURL(raw string) string {
	url := SanitizeText(raw, 500)
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}

	return ""
}

// ClassifyRegion returns a coarse, best-effort region tag for a network
// origin: "Local" for private and loopback addresses, "Global" for other
// parseable addresses, "Unknown" when the address fails to parse.
func ClassifyRegion(origin string) string {
	addr, err := netip.ParseAddr(origin)
	if err != nil {
		return RegionUnknown
	}

	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		return RegionLocal
	}

	return RegionGlobal
}
