// Package ax25 provides AX.25 station identities, frame decoding and the
// normalized packet event model consumed by the analytics packages.
package ax25

import "strings"

// Placeholder is what decoders emit for an address they could not resolve.
const Placeholder = "?"

// StationID is a canonical station identifier: trimmed, uppercase, never
// empty and never the "?" placeholder. Two identifiers name the same
// station iff they are equal as StationID values.
type StationID string

// Normalize canonicalizes a raw station identifier. It reports false when
// the identifier is absent (empty or the placeholder), in which case the
// returned StationID is the zero value.
func Normalize(raw string) (StationID, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" || s == Placeholder {
		return "", false
	}
	return StationID(s), true
}

// Callsign returns the base callsign with any SSID suffix removed, so
// "K0EPI-7" and "K0EPI-1" both map to "K0EPI".
func (s StationID) Callsign() string {
	id := string(s)
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// SSID returns the numeric SSID suffix, or 0 when the identifier carries
// none.
func (s StationID) SSID() int {
	id := string(s)
	i := strings.IndexByte(id, '-')
	if i < 0 || i+1 >= len(id) {
		return 0
	}
	n := 0
	for _, c := range id[i+1:] {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
