// Package traffic aggregates packet events into time-bucketed series,
// summaries, heatmaps, histograms and ranked tables. All aggregation is
// pure: the same events and timeframe always produce the same result.
package traffic

import "time"

// Bucket is a fixed time-bucket granularity for series aggregation.
type Bucket int

const (
	Bucket10s Bucket = iota
	Bucket1m
	Bucket5m
	Bucket15m
	Bucket1h
	Bucket1d
)

// buckets is ordered finest to coarsest.
var buckets = []Bucket{Bucket10s, Bucket1m, Bucket5m, Bucket15m, Bucket1h, Bucket1d}

var bucketNames = map[Bucket]string{
	Bucket10s: "10s",
	Bucket1m:  "1m",
	Bucket5m:  "5m",
	Bucket15m: "15m",
	Bucket1h:  "1h",
	Bucket1d:  "1d",
}

func (b Bucket) String() string {
	if name, ok := bucketNames[b]; ok {
		return name
	}
	return "unknown"
}

// Duration returns the bucket width.
func (b Bucket) Duration() time.Duration {
	switch b {
	case Bucket10s:
		return 10 * time.Second
	case Bucket1m:
		return time.Minute
	case Bucket5m:
		return 5 * time.Minute
	case Bucket15m:
		return 15 * time.Minute
	case Bucket1h:
		return time.Hour
	case Bucket1d:
		return 24 * time.Hour
	}
	return time.Minute
}

// Truncate floors t to the start of its bucket using calendar components,
// so boundaries align to human time units in t's location rather than to
// raw seconds since the epoch. Truncating an already aligned timestamp is
// the identity.
func (b Bucket) Truncate(t time.Time) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	loc := t.Location()

	switch b {
	case Bucket10s:
		return time.Date(year, month, day, hour, minute, sec-sec%10, 0, loc)
	case Bucket1m:
		return time.Date(year, month, day, hour, minute, 0, 0, loc)
	case Bucket5m:
		return time.Date(year, month, day, hour, minute-minute%5, 0, 0, loc)
	case Bucket15m:
		return time.Date(year, month, day, hour, minute-minute%15, 0, 0, loc)
	case Bucket1h:
		return time.Date(year, month, day, hour, 0, 0, 0, loc)
	case Bucket1d:
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	}
	return t
}

// Next returns the start of the bucket after the one containing t. Day
// buckets step by calendar day and the rest re-truncate after advancing,
// so successive starts always agree with Truncate even when a DST
// transition makes a day or hour shorter or longer than its nominal width.
func (b Bucket) Next(t time.Time) time.Time {
	start := b.Truncate(t)
	if b == Bucket1d {
		year, month, day := start.Date()
		return time.Date(year, month, day+1, 0, 0, 0, 0, start.Location())
	}
	next := b.Truncate(start.Add(b.Duration()))
	if !next.After(start) {
		// A repeated wall-clock hour truncates back into the current
		// bucket; step once more to clear it.
		next = b.Truncate(start.Add(2 * b.Duration()))
	}
	return next
}

// BucketFor picks the finest bucket whose count over span stays within
// the target plot width, so axis labels do not crowd. Falls back to the
// coarsest bucket for very long spans.
func BucketFor(span time.Duration, widthPx int) Bucket {
	if widthPx < 1 {
		widthPx = 1
	}
	for _, b := range buckets {
		if int(span/b.Duration())+1 <= widthPx {
			return b
		}
	}
	return Bucket1d
}

// Timeframe is an explicit observation window.
type Timeframe struct {
	Start time.Time
	End   time.Time
}

// Duration returns the window length.
func (tf Timeframe) Duration() time.Duration {
	return tf.End.Sub(tf.Start)
}

// Contains reports whether t falls inside the window (Start inclusive,
// End exclusive).
func (tf Timeframe) Contains(t time.Time) bool {
	return !t.Before(tf.Start) && t.Before(tf.End)
}

// presets maps relative timeframe names to their span.
var presets = map[string]time.Duration{
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// ResolvePreset resolves a relative preset name against now. It reports
// false for an unknown preset.
func ResolvePreset(name string, now time.Time) (Timeframe, bool) {
	span, ok := presets[name]
	if !ok {
		return Timeframe{}, false
	}
	return Timeframe{Start: now.Add(-span), End: now}, true
}
