package traffic

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/axterm-radio/netwatch/internal/ax25"
)

// Options configures an Analyze run.
type Options struct {
	HeatmapBins   int // stations per heatmap axis
	HistogramBins int // payload histogram bin count
	TopN          int // rows per ranked table
	PlotWidth     int // target bucket count for series
}

// DefaultOptions returns aggregation options suitable for a dashboard.
func DefaultOptions() Options {
	return Options{
		HeatmapBins:   16,
		HistogramBins: 12,
		TopN:          10,
		PlotWidth:     120,
	}
}

// Summary holds headline metrics over the analyzed window.
type Summary struct {
	Packets        int                `json:"packets"`
	Bytes          int64              `json:"bytes"`
	UniqueStations int                `json:"unique_stations"`
	WithInfo       int                `json:"with_info"`
	ClassRatio     map[string]float64 `json:"class_ratio"`
}

// SeriesPoint is one bucket of an aggregate series.
type SeriesPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Value       float64   `json:"value"`
}

// Series is an ordered per-bucket series over the analyzed window.
type Series struct {
	Bucket Bucket        `json:"bucket"`
	Points []SeriesPoint `json:"points"`
}

// HeatmapCell is one source/target cell of the station heatmap.
type HeatmapCell struct {
	From  ax25.StationID `json:"from"`
	To    ax25.StationID `json:"to"`
	Count int            `json:"count"`
}

// Heatmap is a station-by-station traffic matrix limited to the busiest
// stations on each axis.
type Heatmap struct {
	Stations []ax25.StationID `json:"stations"`
	Cells    []HeatmapCell    `json:"cells"`
}

// Histogram is a fixed-bin histogram of payload sizes.
type Histogram struct {
	BinEdges []float64 `json:"bin_edges"`
	Counts   []int     `json:"counts"`
}

// TopEntry is one row of a ranked station table.
type TopEntry struct {
	Station ax25.StationID `json:"station"`
	Count   int            `json:"count"`
	Bytes   int64          `json:"bytes"`
}

// TopTables holds the ranked top-N tables.
type TopTables struct {
	Talkers      []TopEntry `json:"talkers"`
	Destinations []TopEntry `json:"destinations"`
	Digipeaters  []TopEntry `json:"digipeaters"`
}

// Result is the full aggregation output for one window. It is an
// immutable snapshot; rebuilds replace it wholesale.
type Result struct {
	Timeframe Timeframe `json:"timeframe"`
	Summary   Summary   `json:"summary"`
	Packets   Series    `json:"packets"`
	Bytes     Series    `json:"bytes"`
	Stations  Series    `json:"stations"`
	Heatmap   Heatmap   `json:"heatmap"`
	Histogram Histogram `json:"histogram"`
	Top       TopTables `json:"top"`
}

// Analyze aggregates events falling inside tf into a Result. The input
// order does not matter; re-running with the same events and timeframe
// yields an identical result.
func Analyze(events []ax25.PacketEvent, tf Timeframe, opts Options) Result {
	bucket := BucketFor(tf.Duration(), opts.PlotWidth)

	type bucketAgg struct {
		packets  int
		bytes    int64
		stations map[ax25.StationID]bool
	}

	byBucket := make(map[int64]*bucketAgg)
	uniqueStations := make(map[ax25.StationID]bool)
	classCounts := make(map[string]int)
	pairCounts := make(map[[2]ax25.StationID]int)
	stationTraffic := make(map[ax25.StationID]int)
	talkers := make(map[ax25.StationID]*TopEntry)
	dests := make(map[ax25.StationID]*TopEntry)
	digis := make(map[ax25.StationID]*TopEntry)

	var payloads []float64
	summary := Summary{ClassRatio: make(map[string]float64)}

	for _, ev := range events {
		if !tf.Contains(ev.Timestamp) {
			continue
		}

		summary.Packets++
		summary.Bytes += int64(ev.PayloadLen)
		if ev.HasInfo {
			summary.WithInfo++
		}
		classCounts[ev.Class.String()]++
		payloads = append(payloads, float64(ev.PayloadLen))

		key := bucket.Truncate(ev.Timestamp).Unix()
		agg := byBucket[key]
		if agg == nil {
			agg = &bucketAgg{stations: make(map[ax25.StationID]bool)}
			byBucket[key] = agg
		}
		agg.packets++
		agg.bytes += int64(ev.PayloadLen)

		if ev.From != "" {
			agg.stations[ev.From] = true
			uniqueStations[ev.From] = true
			stationTraffic[ev.From]++
			bumpEntry(talkers, ev.From, int64(ev.PayloadLen))
		}
		if ev.To != "" {
			agg.stations[ev.To] = true
			uniqueStations[ev.To] = true
			stationTraffic[ev.To]++
			bumpEntry(dests, ev.To, int64(ev.PayloadLen))
		}
		for _, hop := range ev.Via {
			bumpEntry(digis, hop, int64(ev.PayloadLen))
		}
		if ev.From != "" && ev.To != "" {
			pairCounts[[2]ax25.StationID{ev.From, ev.To}]++
		}
	}

	summary.UniqueStations = len(uniqueStations)
	if summary.Packets > 0 {
		for class, n := range classCounts {
			summary.ClassRatio[class] = float64(n) / float64(summary.Packets)
		}
	}

	// Emit every bucket in the window so the three series stay aligned,
	// with zero-valued points where nothing was heard.
	packetsSeries := Series{Bucket: bucket}
	bytesSeries := Series{Bucket: bucket}
	stationsSeries := Series{Bucket: bucket}
	for t := bucket.Truncate(tf.Start); t.Before(tf.End); t = bucket.Next(t) {
		agg := byBucket[t.Unix()]
		var p, b, s float64
		if agg != nil {
			p = float64(agg.packets)
			b = float64(agg.bytes)
			s = float64(len(agg.stations))
		}
		packetsSeries.Points = append(packetsSeries.Points, SeriesPoint{BucketStart: t, Value: p})
		bytesSeries.Points = append(bytesSeries.Points, SeriesPoint{BucketStart: t, Value: b})
		stationsSeries.Points = append(stationsSeries.Points, SeriesPoint{BucketStart: t, Value: s})
	}

	return Result{
		Timeframe: tf,
		Summary:   summary,
		Packets:   packetsSeries,
		Bytes:     bytesSeries,
		Stations:  stationsSeries,
		Heatmap:   buildHeatmap(stationTraffic, pairCounts, opts.HeatmapBins),
		Histogram: buildHistogram(payloads, opts.HistogramBins),
		Top: TopTables{
			Talkers:      rankEntries(talkers, opts.TopN),
			Destinations: rankEntries(dests, opts.TopN),
			Digipeaters:  rankEntries(digis, opts.TopN),
		},
	}
}

func bumpEntry(m map[ax25.StationID]*TopEntry, id ax25.StationID, bytes int64) {
	e := m[id]
	if e == nil {
		e = &TopEntry{Station: id}
		m[id] = e
	}
	e.Count++
	e.Bytes += bytes
}

// rankEntries sorts by descending count with lexicographic tie-break so
// the ranking is stable across runs.
func rankEntries(m map[ax25.StationID]*TopEntry, n int) []TopEntry {
	out := make([]TopEntry, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Station < out[j].Station
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// buildHeatmap limits both axes to the busiest bins stations and emits
// cells in row-major station order.
func buildHeatmap(traffic map[ax25.StationID]int, pairs map[[2]ax25.StationID]int, bins int) Heatmap {
	stations := make([]ax25.StationID, 0, len(traffic))
	for id := range traffic {
		stations = append(stations, id)
	}
	sort.Slice(stations, func(i, j int) bool {
		if traffic[stations[i]] != traffic[stations[j]] {
			return traffic[stations[i]] > traffic[stations[j]]
		}
		return stations[i] < stations[j]
	})
	if bins > 0 && len(stations) > bins {
		stations = stations[:bins]
	}

	hm := Heatmap{Stations: stations}
	for _, from := range stations {
		for _, to := range stations {
			if count := pairs[[2]ax25.StationID{from, to}]; count > 0 {
				hm.Cells = append(hm.Cells, HeatmapCell{From: from, To: to, Count: count})
			}
		}
	}
	return hm
}

// buildHistogram bins payload sizes into a fixed number of equal-width
// bins spanning [0, max+1).
func buildHistogram(payloads []float64, bins int) Histogram {
	if bins < 1 {
		bins = 1
	}
	edges := make([]float64, bins+1)
	if len(payloads) == 0 {
		floats.Span(edges, 0, float64(bins))
		return Histogram{BinEdges: edges, Counts: make([]int, bins)}
	}

	sort.Float64s(payloads)
	max := payloads[len(payloads)-1]
	floats.Span(edges, 0, max+1)

	counts := make([]float64, bins)
	stat.Histogram(counts, edges, payloads, nil)

	out := make([]int, bins)
	for i, c := range counts {
		out[i] = int(c)
	}
	return Histogram{BinEdges: edges, Counts: out}
}
