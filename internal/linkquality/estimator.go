// Package linkquality maintains directional delivery-ratio estimates for
// station pairs, inferred passively from observed traffic. No probe frames
// are ever transmitted: a link's quality is an EWMA over the success/retry
// pattern of packets that happened to cross it, in the style of ETX but
// without the active probing.
package linkquality

import (
	"math"
	"sort"
	"time"

	"github.com/axterm-radio/netwatch/internal/ax25"
)

// Params tunes the estimator.
type Params struct {
	Alpha         float64       // EWMA smoothing factor, (0,1]
	InitialRatio  float64       // seed delivery ratio for a first-seen link
	RingCapacity  int           // per-link observation ring, clamped to >= 1
	SlidingWindow time.Duration // observations older than this are purged
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		Alpha:         0.1,
		InitialRatio:  0.5,
		RingCapacity:  64,
		SlidingWindow: 30 * time.Minute,
	}
}

type pairKey struct {
	from, to ax25.StationID
}

type observation struct {
	ts        time.Time
	duplicate bool
}

// linkState is the mutable per-direction record. The ring is a fixed-size
// array addressed by (head, count); oldest entries are overwritten once the
// ring fills.
type linkState struct {
	ratio       float64
	ring        []observation
	head        int // index of the oldest buffered observation
	count       int // buffered observations, <= len(ring)
	total       int // lifetime observations, survives purging
	lastUpdated time.Time
}

func (s *linkState) push(o observation) {
	if s.count < len(s.ring) {
		s.ring[(s.head+s.count)%len(s.ring)] = o
		s.count++
	} else {
		s.ring[s.head] = o
		s.head = (s.head + 1) % len(s.ring)
	}
}

// dropOlderThan evicts buffered observations before the cutoff. The ring is
// time-ordered, so eviction only advances head.
func (s *linkState) dropOlderThan(cutoff time.Time) {
	for s.count > 0 {
		if !s.ring[s.head].ts.Before(cutoff) {
			return
		}
		s.head = (s.head + 1) % len(s.ring)
		s.count--
	}
}

// Estimator holds all directional link states. It is not internally
// synchronized: a mutable instance belongs to a single writer, typically the
// engine's fold goroutine.
type Estimator struct {
	params Params
	links  map[pairKey]*linkState
}

// NewEstimator builds an estimator, clamping RingCapacity up to 1 so a
// zero-configured ring still records the latest observation.
func NewEstimator(p Params) *Estimator {
	if p.RingCapacity < 1 {
		p.RingCapacity = 1
	}
	return &Estimator{
		params: p,
		links:  make(map[pairKey]*linkState),
	}
}

// Observe records one packet crossing the from -> to direction. A duplicate
// (retry) counts as a delivery failure in the EWMA; anything else counts as
// a success. Absent endpoints are ignored.
func (e *Estimator) Observe(from, to ax25.StationID, ts time.Time, isDuplicate bool) {
	if from == "" || to == "" || from == to {
		return
	}
	key := pairKey{from, to}
	st, ok := e.links[key]
	if !ok {
		st = &linkState{
			ratio: e.params.InitialRatio,
			ring:  make([]observation, e.params.RingCapacity),
		}
		e.links[key] = st
	}
	st.push(observation{ts: ts, duplicate: isDuplicate})

	c := 1.0
	if isDuplicate {
		c = 0.0
	}
	st.ratio = e.params.Alpha*c + (1-e.params.Alpha)*st.ratio
	st.total++
	st.lastUpdated = ts
}

// qualityOf converts a delivery ratio to the 0..255 scale.
func qualityOf(ratio float64) uint8 {
	q := math.Round(255 * ratio)
	if q < 0 {
		q = 0
	}
	if q > 255 {
		q = 255
	}
	return uint8(q)
}

// Quality returns the directional quality score, absent when the link has
// never been observed.
func (e *Estimator) Quality(from, to ax25.StationID) (uint8, bool) {
	st, ok := e.links[pairKey{from, to}]
	if !ok {
		return 0, false
	}
	return qualityOf(st.ratio), true
}

// DFEstimate returns the forward delivery probability for from -> to.
func (e *Estimator) DFEstimate(from, to ax25.StationID) (float64, bool) {
	st, ok := e.links[pairKey{from, to}]
	if !ok {
		return 0, false
	}
	return st.ratio, true
}

// DREstimate returns the reverse delivery probability, i.e. to -> from.
func (e *Estimator) DREstimate(from, to ax25.StationID) (float64, bool) {
	return e.DFEstimate(to, from)
}

// SymmetricQuality returns the geometric mean of the two directional
// qualities. It reports absent unless both directions hold at least one
// buffered observation: no evidence is not the same thing as zero quality.
func (e *Estimator) SymmetricQuality(a, b ax25.StationID) (uint8, bool) {
	ab, okAB := e.links[pairKey{a, b}]
	ba, okBA := e.links[pairKey{b, a}]
	if !okAB || !okBA || ab.count == 0 || ba.count == 0 {
		return 0, false
	}
	qab := float64(qualityOf(ab.ratio))
	qba := float64(qualityOf(ba.ratio))
	return uint8(math.Round(math.Sqrt(qab * qba))), true
}

// PurgeStale evicts buffered observations older than the sliding window and
// deletes links with nothing left in their rings.
func (e *Estimator) PurgeStale(now time.Time) {
	cutoff := now.Add(-e.params.SlidingWindow)
	for key, st := range e.links {
		st.dropOlderThan(cutoff)
		if st.count == 0 {
			delete(e.links, key)
		}
	}
}

// Len reports the number of tracked directional links.
func (e *Estimator) Len() int {
	return len(e.links)
}

// LinkRecord is the flattened persistence form of one directional link.
type LinkRecord struct {
	From         ax25.StationID `json:"from"`
	To           ax25.StationID `json:"to"`
	Quality      uint8          `json:"quality"`
	DF           float64        `json:"df"`
	DR           float64        `json:"dr"`
	Observations int            `json:"observations"`
	LastUpdated  time.Time      `json:"last_updated"`
}

// Export flattens every directional link into records, sorted by (from, to)
// for stable output. The live ring buffers are not part of the export.
func (e *Estimator) Export() []LinkRecord {
	records := make([]LinkRecord, 0, len(e.links))
	for key, st := range e.links {
		rec := LinkRecord{
			From:         key.from,
			To:           key.to,
			Quality:      qualityOf(st.ratio),
			DF:           st.ratio,
			Observations: st.total,
			LastUpdated:  st.lastUpdated,
		}
		if rev, ok := e.links[pairKey{key.to, key.from}]; ok {
			rec.DR = rev.ratio
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].From != records[j].From {
			return records[i].From < records[j].From
		}
		return records[i].To < records[j].To
	})
	return records
}

// ImportRecords rebuilds link states from flattened records. Ring buffers
// start empty, so imported links contribute to directional quality but not
// to symmetric quality until fresh traffic arrives.
func (e *Estimator) ImportRecords(records []LinkRecord) {
	for _, rec := range records {
		if rec.From == "" || rec.To == "" {
			continue
		}
		e.links[pairKey{rec.From, rec.To}] = &linkState{
			ratio:       rec.DF,
			ring:        make([]observation, e.params.RingCapacity),
			total:       rec.Observations,
			lastUpdated: rec.LastUpdated,
		}
	}
}
