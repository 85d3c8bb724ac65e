// Package engine owns the mutable analytics state and turns incoming packet
// batches into immutable snapshots. A single run goroutine folds batches
// into the link-quality estimator and route store, then a coalescing
// trailing rebuild recomputes the traffic, graph and layout models. Readers
// only ever see completed Snapshot values.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axterm-radio/netwatch/internal/ax25"
	"github.com/axterm-radio/netwatch/internal/config"
	"github.com/axterm-radio/netwatch/internal/layout"
	"github.com/axterm-radio/netwatch/internal/linkquality"
	"github.com/axterm-radio/netwatch/internal/monitoring"
	"github.com/axterm-radio/netwatch/internal/netgraph"
	"github.com/axterm-radio/netwatch/internal/netrom"
	"github.com/axterm-radio/netwatch/internal/timeutil"
	"github.com/axterm-radio/netwatch/internal/traffic"
)

// eventRetention bounds how far back the in-memory packet window reaches.
// The traffic presets top out at 7 days; anything older only matters to the
// persistent archive.
const eventRetention = 7 * 24 * time.Hour

// SymmetricLink is a precomputed bidirectional quality for one unordered
// station pair. Only pairs with live evidence in both directions appear.
type SymmetricLink struct {
	A       ax25.StationID `json:"a"`
	B       ax25.StationID `json:"b"`
	Quality uint8          `json:"quality"`
}

// Snapshot is one immutable rebuild result.
type Snapshot struct {
	ID         string                   `json:"id"`
	Generation uint64                   `json:"generation"`
	BuiltAt    time.Time                `json:"built_at"`
	Window     traffic.Timeframe        `json:"window"`
	Traffic    *traffic.Result          `json:"traffic"`
	Graph      *netgraph.Model          `json:"graph"`
	Layout     layout.State             `json:"layout"`
	Links      []linkquality.LinkRecord `json:"links"`
	Symmetric  []SymmetricLink          `json:"symmetric"`
	Routes     []netrom.Route           `json:"routes"`
}

type dupKey struct {
	from, to ax25.StationID
	class    ax25.FrameClass
	length   int
}

// Engine folds packet batches into analytics state. All mutation happens on
// the Run goroutine; Snapshot and Events are safe from any goroutine.
type Engine struct {
	cfg   *config.TuningConfig
	clock timeutil.Clock

	batches   chan []ax25.PacketEvent
	rebuildCh chan struct{}
	coalescer *Coalescer

	// Mutable analytics state, run-goroutine only.
	estimator   *linkquality.Estimator
	routes      *netrom.Store
	layoutState layout.State
	lastSeen    map[dupKey]time.Time
	generation  uint64

	mu       sync.RWMutex
	events   []ax25.PacketEvent
	snapshot *Snapshot
}

// New builds an engine from the tuning config. The engine is inert until
// Run is called.
func New(cfg *config.TuningConfig, clock timeutil.Clock) *Engine {
	e := &Engine{
		cfg:       cfg,
		clock:     clock,
		batches:   make(chan []ax25.PacketEvent, 16),
		rebuildCh: make(chan struct{}, 1),
		estimator: linkquality.NewEstimator(linkquality.Params{
			Alpha:         cfg.GetEWMAAlpha(),
			InitialRatio:  cfg.GetInitialDeliveryRatio(),
			RingCapacity:  cfg.GetRingCapacity(),
			SlidingWindow: time.Duration(cfg.GetSlidingWindowSeconds()) * time.Second,
		}),
		routes: netrom.NewStore(netrom.Params{
			EvidenceWindow:   time.Duration(cfg.GetEvidenceWindowSeconds()) * time.Second,
			RetryPenalty:     cfg.GetRetryPenalty(),
			Increment:        cfg.GetReinforcementIncrement(),
			BaseQuality:      float64(cfg.GetBaseRouteQuality()),
			MaxQuality:       float64(cfg.GetMaxRouteQuality()),
			MaxRoutesPerDest: cfg.GetMaxRoutesPerDest(),
		}),
		layoutState: layout.NewState(),
		lastSeen:    make(map[dupKey]time.Time),
	}
	e.coalescer = NewCoalescer(clock, cfg.GetRebuildDebounce(), e.requestRebuild)
	return e
}

// ImportState seeds the estimator and route store from persisted records.
// Call before Run.
func (e *Engine) ImportState(links []linkquality.LinkRecord, routes []netrom.Route) {
	e.estimator.ImportRecords(links)
	e.routes.ImportRecords(routes)
}

// ExportState flattens the live estimator and route store for persistence.
// Call after Run has returned.
func (e *Engine) ExportState() ([]linkquality.LinkRecord, []netrom.Route) {
	return e.estimator.Export(), e.routes.Export()
}

// Submit queues a packet batch for folding. Blocks if the engine is behind;
// returns early when the context is canceled.
func (e *Engine) Submit(ctx context.Context, batch []ax25.PacketEvent) error {
	if len(batch) == 0 {
		return nil
	}
	select {
	case e.batches <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) requestRebuild() {
	select {
	case e.rebuildCh <- struct{}{}:
	default:
	}
}

// Run is the single-writer loop. It returns when ctx is canceled, after
// performing a final rebuild so the last snapshot reflects all folded data.
func (e *Engine) Run(ctx context.Context) {
	defer e.coalescer.Stop()
	for {
		select {
		case <-ctx.Done():
			e.drain()
			e.rebuild()
			return
		case batch := <-e.batches:
			e.fold(batch)
			e.coalescer.Schedule()
		case <-e.rebuildCh:
			e.rebuild()
		}
	}
}

// drain folds any batches still queued at shutdown so the final rebuild
// and the exported state reflect everything that was submitted.
func (e *Engine) drain() {
	for {
		select {
		case batch := <-e.batches:
			e.fold(batch)
		default:
			return
		}
	}
}

// fold applies one batch to the mutable state. Duplicate detection is a
// passive heuristic: an identical (from, to, class, length) tuple seen again
// inside the duplicate window is treated as a link-layer retry.
func (e *Engine) fold(batch []ax25.PacketEvent) {
	dupWindow := time.Duration(e.cfg.GetDuplicateWindowSeconds()) * time.Second

	for _, ev := range batch {
		dup := false
		if ev.From != "" && ev.To != "" {
			key := dupKey{ev.From, ev.To, ev.Class, ev.PayloadLen}
			if last, ok := e.lastSeen[key]; ok && ev.Timestamp.Sub(last) >= 0 && ev.Timestamp.Sub(last) < dupWindow {
				dup = true
			}
			e.lastSeen[key] = ev.Timestamp

			e.estimator.Observe(ev.From, ev.To, ev.Timestamp, dup)

			path := make([]ax25.StationID, 0, len(ev.Via)+2)
			path = append(path, ev.From)
			path = append(path, ev.Via...)
			path = append(path, ev.To)
			e.routes.Refresh(ev.To, ev.From, path, ev.Timestamp, ev.Class, dup)
		}

		e.mu.Lock()
		e.events = append(e.events, ev)
		e.mu.Unlock()
	}

	now := e.clock.Now()
	e.estimator.PurgeStale(now)
	e.trimEvents(now.Add(-eventRetention))
	e.trimLastSeen(now.Add(-2 * dupWindow))
}

func (e *Engine) trimEvents(cutoff time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := 0
	for i < len(e.events) && e.events[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		e.events = append(e.events[:0], e.events[i:]...)
	}
}

func (e *Engine) trimLastSeen(cutoff time.Time) {
	for key, ts := range e.lastSeen {
		if ts.Before(cutoff) {
			delete(e.lastSeen, key)
		}
	}
}

// rebuild recomputes every snapshot model from the current state.
func (e *Engine) rebuild() {
	now := e.clock.Now()
	window := traffic.Timeframe{Start: now.Add(-24 * time.Hour), End: now}
	events := e.Events(window)

	result := traffic.Analyze(events, window, traffic.Options{
		HeatmapBins:   e.cfg.GetHeatmapBins(),
		HistogramBins: e.cfg.GetHistogramBins(),
		TopN:          e.cfg.GetTopN(),
		PlotWidth:     e.cfg.GetPlotWidth(),
	})

	graph := netgraph.Build(events, netgraph.Options{
		ExpandVia:    e.cfg.GetExpandVia(),
		MinEdgeCount: e.cfg.GetMinEdgeCount(),
		GroupSSIDs:   e.cfg.GetGroupSSIDs(),
		NodeCap:      e.cfg.GetNodeCap(),
	})

	e.layoutState = e.runLayout(graph)

	snap := &Snapshot{
		ID:         uuid.NewString(),
		Generation: e.generation + 1,
		BuiltAt:    now,
		Window:     window,
		Traffic:    &result,
		Graph:      graph,
		Layout:     e.layoutState,
		Links:      e.estimator.Export(),
		Symmetric:  e.symmetricLinks(graph),
		Routes:     e.routes.Export(),
	}
	e.generation++

	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()

	monitoring.Logf("engine: snapshot gen=%d events=%d nodes=%d edges=%d energy=%.6f",
		snap.Generation, len(events), len(graph.Nodes), len(graph.Edges), e.layoutState.Energy)
}

// runLayout seeds from the carried state and ticks until the energy
// threshold or the tick cap, whichever comes first.
func (e *Engine) runLayout(graph *netgraph.Model) layout.State {
	params := layout.Params{
		RepulsionStrength: e.cfg.GetRepulsionStrength(),
		SpringStrength:    e.cfg.GetSpringStrength(),
		SpringRestLength:  e.cfg.GetSpringRestLength(),
		Damping:           e.cfg.GetDamping(),
		TimeStep:          e.cfg.GetTimeStep(),
		IterationsPerTick: e.cfg.GetIterationsPerTick(),
	}
	state := layout.Seed(graph, e.layoutState, uint64(e.cfg.GetLayoutSeed()))
	threshold := e.cfg.GetEnergyThreshold()
	for i := 0; i < e.cfg.GetMaxTicks(); i++ {
		state = layout.Tick(graph, state, params)
		if state.MinEnergy <= threshold {
			break
		}
	}
	return state
}

// symmetricLinks precomputes bidirectional quality for every adjacent pair
// in the graph. Doing this on the run goroutine keeps the estimator
// single-writer while letting the API serve symmetric lookups lock-free.
func (e *Engine) symmetricLinks(graph *netgraph.Model) []SymmetricLink {
	var out []SymmetricLink
	seen := make(map[[2]ax25.StationID]bool)
	for _, edge := range graph.Edges {
		a, b := edge.Source, edge.Target
		if b < a {
			a, b = b, a
		}
		pair := [2]ax25.StationID{a, b}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		if q, ok := e.pairQuality(graph, a, b); ok {
			out = append(out, SymmetricLink{A: a, B: b, Quality: q})
		}
	}
	return out
}

// pairQuality resolves the symmetric quality between two graph nodes. With
// SSID grouping a node id is a base callsign while the estimator is keyed by
// the full on-air identifiers, so every member pair is consulted and the
// strongest confirmed link wins.
func (e *Engine) pairQuality(graph *netgraph.Model, a, b ax25.StationID) (uint8, bool) {
	var best uint8
	found := false
	for _, ma := range memberIDs(graph, a) {
		for _, mb := range memberIDs(graph, b) {
			if q, ok := e.estimator.SymmetricQuality(ma, mb); ok && (!found || q > best) {
				best = q
				found = true
			}
		}
	}
	return best, found
}

// memberIDs lists the concrete station identifiers a graph node stands for.
func memberIDs(graph *netgraph.Model, id ax25.StationID) []ax25.StationID {
	node := graph.Node(id)
	if node == nil || len(node.GroupedSSIDs) == 0 {
		return []ax25.StationID{id}
	}
	members := make([]ax25.StationID, len(node.GroupedSSIDs))
	for i, s := range node.GroupedSSIDs {
		members[i] = ax25.StationID(s)
	}
	return members
}

// Snapshot returns the latest rebuild result, or nil before the first
// rebuild completes.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Events copies the retained packet events inside the timeframe. Safe to
// call concurrently with folding.
func (e *Engine) Events(tf traffic.Timeframe) []ax25.PacketEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ax25.PacketEvent, 0, len(e.events))
	for _, ev := range e.events {
		if tf.Contains(ev.Timestamp) {
			out = append(out, ev)
		}
	}
	return out
}
