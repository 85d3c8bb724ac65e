// Package api exposes the analytics snapshots over HTTP. All data endpoints
// read the engine's latest immutable snapshot; nothing here mutates
// analytics state.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/axterm-radio/netwatch/internal/ax25"
	"github.com/axterm-radio/netwatch/internal/config"
	"github.com/axterm-radio/netwatch/internal/engine"
	"github.com/axterm-radio/netwatch/internal/httputil"
	"github.com/axterm-radio/netwatch/internal/netrom"
	"github.com/axterm-radio/netwatch/internal/timeutil"
	"github.com/axterm-radio/netwatch/internal/traffic"
	"github.com/axterm-radio/netwatch/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// SnapshotSource is the engine surface the server reads from.
type SnapshotSource interface {
	Snapshot() *engine.Snapshot
	Events(tf traffic.Timeframe) []ax25.PacketEvent
}

type Server struct {
	engine SnapshotSource
	cfg    *config.TuningConfig
	clock  timeutil.Clock
}

func NewServer(src SnapshotSource, cfg *config.TuningConfig, clock timeutil.Clock) *Server {
	return &Server{
		engine: src,
		cfg:    cfg,
		clock:  clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/healthz", s.healthz)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/series", s.showSeries)
	mux.HandleFunc("/api/heatmap", s.showHeatmap)
	mux.HandleFunc("/api/histogram", s.showHistogram)
	mux.HandleFunc("/api/top", s.showTopTables)
	mux.HandleFunc("/api/graph", s.showGraph)
	mux.HandleFunc("/api/layout", s.showLayout)
	mux.HandleFunc("/api/links", s.showLinks)
	mux.HandleFunc("/api/links/symmetric", s.showSymmetricLink)
	mux.HandleFunc("/api/routes", s.showRoutes)
	mux.HandleFunc("/charts/traffic", s.trafficChart)
	return mux
}

// snapshot fetches the latest snapshot or writes a 503 and returns nil.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) *engine.Snapshot {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil
	}
	snap := s.engine.Snapshot()
	if snap == nil {
		httputil.ServiceUnavailable(w, "no snapshot yet")
		return nil
	}
	return snap
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	status := map[string]interface{}{"status": "ok", "version": version.Version}
	if snap := s.engine.Snapshot(); snap != nil {
		status["snapshot_id"] = snap.ID
		status["generation"] = snap.Generation
		status["built_at"] = snap.BuiltAt
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Traffic.Summary)
}

// seriesResponse bundles the three aggregate series of one window.
type seriesResponse struct {
	Timeframe traffic.Timeframe `json:"timeframe"`
	Packets   traffic.Series    `json:"packets"`
	Bytes     traffic.Series    `json:"bytes"`
	Stations  traffic.Series    `json:"stations"`
}

// showSeries recomputes the bucketed series for a requested preset window.
// Aggregation over the retained events is side-effect-free, so doing it per
// request is safe while the engine keeps folding.
func (s *Server) showSeries(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	result := snap.Traffic
	if preset := r.URL.Query().Get("preset"); preset != "" {
		tf, ok := traffic.ResolvePreset(preset, s.clock.Now())
		if !ok {
			httputil.BadRequest(w, "unknown preset: "+preset)
			return
		}
		recomputed := traffic.Analyze(s.engine.Events(tf), tf, s.analyzeOptions())
		result = &recomputed
	}
	httputil.WriteJSON(w, http.StatusOK, seriesResponse{
		Timeframe: result.Timeframe,
		Packets:   result.Packets,
		Bytes:     result.Bytes,
		Stations:  result.Stations,
	})
}

func (s *Server) analyzeOptions() traffic.Options {
	return traffic.Options{
		HeatmapBins:   s.cfg.GetHeatmapBins(),
		HistogramBins: s.cfg.GetHistogramBins(),
		TopN:          s.cfg.GetTopN(),
		PlotWidth:     s.cfg.GetPlotWidth(),
	}
}

func (s *Server) showHeatmap(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Traffic.Heatmap)
}

func (s *Server) showHistogram(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Traffic.Histogram)
}

func (s *Server) showTopTables(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Traffic.Top)
}

func (s *Server) showGraph(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Graph)
}

func (s *Server) showLayout(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Layout)
}

func (s *Server) showLinks(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Links)
}

func (s *Server) showSymmetricLink(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	a, okA := ax25.Normalize(r.URL.Query().Get("a"))
	b, okB := ax25.Normalize(r.URL.Query().Get("b"))
	if !okA || !okB {
		httputil.BadRequest(w, "parameters 'a' and 'b' are required")
		return
	}
	if b < a {
		a, b = b, a
	}
	for _, link := range snap.Symmetric {
		if link.A == a && link.B == b {
			httputil.WriteJSON(w, http.StatusOK, link)
			return
		}
	}
	httputil.NotFound(w, "no bidirectional evidence for this pair")
}

func (s *Server) showRoutes(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(w, r)
	if snap == nil {
		return
	}
	if raw := r.URL.Query().Get("dest"); raw != "" {
		dest, ok := ax25.Normalize(raw)
		if !ok {
			httputil.BadRequest(w, "invalid dest")
			return
		}
		filtered := []netrom.Route{}
		for _, route := range snap.Routes {
			if route.Dest == dest {
				filtered = append(filtered, route)
			}
		}
		httputil.WriteJSON(w, http.StatusOK, filtered)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap.Routes)
}
