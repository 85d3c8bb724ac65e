// Package netrom infers NetRom-style route quality from passively observed
// traffic. Routes are heuristic evidence, not protocol state: seeing useful
// frames flow from an origin toward a destination reinforces the candidate
// route, retries decay it, and the accumulated score maps onto the usual
// 0..255 NetRom quality scale for advertisement.
package netrom

import (
	"math"
	"sort"
	"time"

	"github.com/axterm-radio/netwatch/internal/ax25"
)

// Params tunes evidence accumulation.
type Params struct {
	EvidenceWindow   time.Duration // minimum spacing between reinforcements
	RetryPenalty     float64       // score multiplier on retry, (0,1)
	Increment        float64       // quality points per unit of score
	BaseQuality      float64       // advertised quality at zero score
	MaxQuality       float64       // advertised quality ceiling
	MaxRoutesPerDest int           // candidate routes retained per destination
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		EvidenceWindow:   30 * time.Second,
		RetryPenalty:     0.7,
		Increment:        10,
		BaseQuality:      128,
		MaxQuality:       255,
		MaxRoutesPerDest: 4,
	}
}

// classWeight maps a frame classification to evidence value. Traffic that
// demonstrates forward progress counts most; control-only and ambiguous
// frames count nothing.
func classWeight(class ax25.FrameClass) float64 {
	switch class {
	case ax25.ClassData:
		return 1.0
	case ax25.ClassUnnumbered:
		return 0.9
	case ax25.ClassNetRom:
		return 0.8
	case ax25.ClassBeacon:
		return 0.4
	case ax25.ClassAck:
		return 0.2
	default:
		// Busy, reject, session control and unknown frames say nothing
		// about whether the route moves data.
		return 0
	}
}

type routeKey struct {
	dest, origin ax25.StationID
}

// Route is one inferred candidate: traffic toward Dest that entered the
// network at Origin, with the most recently seen path.
type Route struct {
	Dest         ax25.StationID   `json:"dest"`
	Origin       ax25.StationID   `json:"origin"`
	Path         []ax25.StationID `json:"path"`
	Score        float64          `json:"score"`
	LastObserved time.Time        `json:"last_observed"`
}

// Store accumulates route evidence. Not internally synchronized; a mutable
// instance belongs to a single writer.
type Store struct {
	params Params
	routes map[routeKey]*Route
}

// NewStore builds an empty evidence store.
func NewStore(p Params) *Store {
	if p.MaxRoutesPerDest < 1 {
		p.MaxRoutesPerDest = 1
	}
	return &Store{
		params: p,
		routes: make(map[routeKey]*Route),
	}
}

// Refresh folds one observation into the (dest, origin) candidate. A retry
// multiplies the accumulated score by the penalty and leaves LastObserved
// alone, so a burst of retries decays prior reinforcement without opening a
// new evidence window. A non-retry with positive class weight reinforces
// only when the evidence window has elapsed since the last reinforcement.
func (s *Store) Refresh(dest, origin ax25.StationID, path []ax25.StationID, ts time.Time, class ax25.FrameClass, isRetry bool) {
	if dest == "" || origin == "" || dest == origin {
		return
	}
	key := routeKey{dest, origin}
	r, ok := s.routes[key]
	if !ok {
		r = &Route{Dest: dest, Origin: origin}
		s.routes[key] = r
	}

	if isRetry {
		r.Score *= s.params.RetryPenalty
		return
	}

	weight := classWeight(class)
	if weight <= 0 {
		return
	}
	if !r.LastObserved.IsZero() && ts.Sub(r.LastObserved) < s.params.EvidenceWindow {
		return
	}
	r.Score += weight
	r.LastObserved = ts
	if len(path) > 0 {
		r.Path = append(r.Path[:0], path...)
	}

	s.enforceCap(dest)
}

// enforceCap keeps only the highest-scoring candidates for a destination.
func (s *Store) enforceCap(dest ax25.StationID) {
	var candidates []*Route
	for key, r := range s.routes {
		if key.dest == dest {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) <= s.params.MaxRoutesPerDest {
		return
	}
	sortRoutes(candidates)
	for _, r := range candidates[s.params.MaxRoutesPerDest:] {
		delete(s.routes, routeKey{r.Dest, r.Origin})
	}
}

func sortRoutes(routes []*Route) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Score != routes[j].Score {
			return routes[i].Score > routes[j].Score
		}
		return routes[i].Origin < routes[j].Origin
	})
}

// AdvertisedQuality maps a candidate's score onto the NetRom quality scale.
// Absent when the (dest, origin) pair has no evidence.
func (s *Store) AdvertisedQuality(dest, origin ax25.StationID) (uint8, bool) {
	r, ok := s.routes[routeKey{dest, origin}]
	if !ok {
		return 0, false
	}
	q := s.params.BaseQuality + r.Score*s.params.Increment
	if q > s.params.MaxQuality {
		q = s.params.MaxQuality
	}
	if q < 0 {
		q = 0
	}
	return uint8(math.Round(q)), true
}

// RoutesFor returns the candidates for a destination, best first. Returned
// routes are copies; mutating them does not affect the store.
func (s *Store) RoutesFor(dest ax25.StationID) []Route {
	var candidates []*Route
	for key, r := range s.routes {
		if key.dest == dest {
			candidates = append(candidates, r)
		}
	}
	sortRoutes(candidates)
	out := make([]Route, len(candidates))
	for i, r := range candidates {
		out[i] = *r
		out[i].Path = append([]ax25.StationID(nil), r.Path...)
	}
	return out
}

// Len reports the number of tracked candidates across all destinations.
func (s *Store) Len() int {
	return len(s.routes)
}

// Export flattens every candidate, sorted by (dest, origin) for stable
// output.
func (s *Store) Export() []Route {
	out := make([]Route, 0, len(s.routes))
	for _, r := range s.routes {
		cp := *r
		cp.Path = append([]ax25.StationID(nil), r.Path...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dest != out[j].Dest {
			return out[i].Dest < out[j].Dest
		}
		return out[i].Origin < out[j].Origin
	})
	return out
}

// ImportRecords rebuilds candidates from exported routes, replacing any
// existing entry for the same (dest, origin) pair.
func (s *Store) ImportRecords(records []Route) {
	for _, rec := range records {
		if rec.Dest == "" || rec.Origin == "" {
			continue
		}
		cp := rec
		cp.Path = append([]ax25.StationID(nil), rec.Path...)
		s.routes[routeKey{rec.Dest, rec.Origin}] = &cp
	}
}
