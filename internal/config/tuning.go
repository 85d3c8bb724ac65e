package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/netwatch.defaults.json"

// TuningConfig holds the named options of every analytics component. The
// schema matches the /api/params endpoint so the same JSON works for both
// startup configuration and runtime updates. All fields are optional;
// the Get* accessors supply defaults for anything left unset.
type TuningConfig struct {
	// Traffic aggregation params
	HeatmapBins   *int `json:"heatmap_bins,omitempty"`
	HistogramBins *int `json:"histogram_bins,omitempty"`
	TopN          *int `json:"top_n,omitempty"`
	PlotWidth     *int `json:"plot_width,omitempty"`

	// Graph params
	MinEdgeCount *int  `json:"min_edge_count,omitempty"`
	ExpandVia    *bool `json:"expand_via,omitempty"`
	GroupSSIDs   *bool `json:"group_ssids,omitempty"`
	NodeCap      *int  `json:"node_cap,omitempty"`

	// Force layout params
	RepulsionStrength *float64 `json:"repulsion_strength,omitempty"`
	SpringStrength    *float64 `json:"spring_strength,omitempty"`
	SpringRestLength  *float64 `json:"spring_rest_length,omitempty"`
	Damping           *float64 `json:"damping,omitempty"`
	TimeStep          *float64 `json:"time_step,omitempty"`
	IterationsPerTick *int     `json:"iterations_per_tick,omitempty"`
	EnergyThreshold   *float64 `json:"energy_threshold,omitempty"`
	MaxTicks          *int     `json:"max_ticks,omitempty"`

	// Link quality params
	EWMAAlpha            *float64 `json:"ewma_alpha,omitempty"`
	InitialDeliveryRatio *float64 `json:"initial_delivery_ratio,omitempty"`
	RingCapacity         *int     `json:"ring_capacity,omitempty"`
	SlidingWindowSeconds *int     `json:"sliding_window_seconds,omitempty"`

	// NetRom route evidence params
	EvidenceWindowSeconds  *int     `json:"evidence_window_seconds,omitempty"`
	RetryPenalty           *float64 `json:"retry_penalty,omitempty"`
	ReinforcementIncrement *float64 `json:"reinforcement_increment,omitempty"`
	BaseRouteQuality       *int     `json:"base_route_quality,omitempty"`
	MaxRouteQuality        *int     `json:"max_route_quality,omitempty"`
	MaxRoutesPerDest       *int     `json:"max_routes_per_dest,omitempty"`

	// Engine params
	RebuildDebounce        *string `json:"rebuild_debounce,omitempty"` // duration string like "250ms"
	LayoutSeed             *int64  `json:"layout_seed,omitempty"`
	DuplicateWindowSeconds *int    `json:"duplicate_window_seconds,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON retain their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that set configuration values are usable. Values the
// components themselves clamp (ring capacity) are not rejected here.
func (c *TuningConfig) Validate() error {
	if c.EWMAAlpha != nil {
		if *c.EWMAAlpha <= 0 || *c.EWMAAlpha > 1 {
			return fmt.Errorf("ewma_alpha must be in (0, 1], got %f", *c.EWMAAlpha)
		}
	}
	if c.InitialDeliveryRatio != nil {
		if *c.InitialDeliveryRatio < 0 || *c.InitialDeliveryRatio > 1 {
			return fmt.Errorf("initial_delivery_ratio must be in [0, 1], got %f", *c.InitialDeliveryRatio)
		}
	}
	if c.RetryPenalty != nil {
		if *c.RetryPenalty <= 0 || *c.RetryPenalty >= 1 {
			return fmt.Errorf("retry_penalty must be in (0, 1), got %f", *c.RetryPenalty)
		}
	}
	if c.Damping != nil {
		if *c.Damping <= 0 || *c.Damping >= 1 {
			return fmt.Errorf("damping must be in (0, 1), got %f", *c.Damping)
		}
	}
	if c.MinEdgeCount != nil && *c.MinEdgeCount < 0 {
		return fmt.Errorf("min_edge_count must be non-negative, got %d", *c.MinEdgeCount)
	}
	if c.NodeCap != nil && *c.NodeCap < 1 {
		return fmt.Errorf("node_cap must be >= 1, got %d", *c.NodeCap)
	}
	if c.RebuildDebounce != nil && *c.RebuildDebounce != "" {
		if _, err := time.ParseDuration(*c.RebuildDebounce); err != nil {
			return fmt.Errorf("invalid rebuild_debounce %q: %w", *c.RebuildDebounce, err)
		}
	}
	return nil
}

// GetHeatmapBins returns the heatmap_bins value or the default.
func (c *TuningConfig) GetHeatmapBins() int {
	if c.HeatmapBins == nil {
		return 16
	}
	return *c.HeatmapBins
}

// GetHistogramBins returns the histogram_bins value or the default.
func (c *TuningConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return 12
	}
	return *c.HistogramBins
}

// GetTopN returns the top_n value or the default.
func (c *TuningConfig) GetTopN() int {
	if c.TopN == nil {
		return 10
	}
	return *c.TopN
}

// GetPlotWidth returns the plot_width value or the default.
func (c *TuningConfig) GetPlotWidth() int {
	if c.PlotWidth == nil {
		return 120
	}
	return *c.PlotWidth
}

// GetMinEdgeCount returns the min_edge_count value or the default.
func (c *TuningConfig) GetMinEdgeCount() int {
	if c.MinEdgeCount == nil {
		return 1
	}
	return *c.MinEdgeCount
}

// GetExpandVia returns the expand_via value or the default.
func (c *TuningConfig) GetExpandVia() bool {
	if c.ExpandVia == nil {
		return true
	}
	return *c.ExpandVia
}

// GetGroupSSIDs returns the group_ssids value or the default.
func (c *TuningConfig) GetGroupSSIDs() bool {
	if c.GroupSSIDs == nil {
		return false
	}
	return *c.GroupSSIDs
}

// GetNodeCap returns the node_cap value or the default.
func (c *TuningConfig) GetNodeCap() int {
	if c.NodeCap == nil {
		return 150
	}
	return *c.NodeCap
}

// GetRepulsionStrength returns the repulsion_strength value or the default.
func (c *TuningConfig) GetRepulsionStrength() float64 {
	if c.RepulsionStrength == nil {
		return 0.002
	}
	return *c.RepulsionStrength
}

// GetSpringStrength returns the spring_strength value or the default.
func (c *TuningConfig) GetSpringStrength() float64 {
	if c.SpringStrength == nil {
		return 0.08
	}
	return *c.SpringStrength
}

// GetSpringRestLength returns the spring_rest_length value or the default.
func (c *TuningConfig) GetSpringRestLength() float64 {
	if c.SpringRestLength == nil {
		return 0.2
	}
	return *c.SpringRestLength
}

// GetDamping returns the damping value or the default.
func (c *TuningConfig) GetDamping() float64 {
	if c.Damping == nil {
		return 0.85
	}
	return *c.Damping
}

// GetTimeStep returns the time_step value or the default.
func (c *TuningConfig) GetTimeStep() float64 {
	if c.TimeStep == nil {
		return 0.1
	}
	return *c.TimeStep
}

// GetIterationsPerTick returns the iterations_per_tick value or the default.
func (c *TuningConfig) GetIterationsPerTick() int {
	if c.IterationsPerTick == nil {
		return 5
	}
	return *c.IterationsPerTick
}

// GetEnergyThreshold returns the energy_threshold value or the default.
func (c *TuningConfig) GetEnergyThreshold() float64 {
	if c.EnergyThreshold == nil {
		return 1e-5
	}
	return *c.EnergyThreshold
}

// GetMaxTicks returns the max_ticks value or the default.
func (c *TuningConfig) GetMaxTicks() int {
	if c.MaxTicks == nil {
		return 60
	}
	return *c.MaxTicks
}

// GetEWMAAlpha returns the ewma_alpha value or the default.
func (c *TuningConfig) GetEWMAAlpha() float64 {
	if c.EWMAAlpha == nil {
		return 0.1
	}
	return *c.EWMAAlpha
}

// GetInitialDeliveryRatio returns the initial_delivery_ratio value or the default.
func (c *TuningConfig) GetInitialDeliveryRatio() float64 {
	if c.InitialDeliveryRatio == nil {
		return 0.5
	}
	return *c.InitialDeliveryRatio
}

// GetRingCapacity returns the ring_capacity value or the default.
func (c *TuningConfig) GetRingCapacity() int {
	if c.RingCapacity == nil {
		return 64
	}
	return *c.RingCapacity
}

// GetSlidingWindowSeconds returns the sliding_window_seconds value or the default.
func (c *TuningConfig) GetSlidingWindowSeconds() int {
	if c.SlidingWindowSeconds == nil {
		return 1800 // 30 minutes
	}
	return *c.SlidingWindowSeconds
}

// GetEvidenceWindowSeconds returns the evidence_window_seconds value or the default.
func (c *TuningConfig) GetEvidenceWindowSeconds() int {
	if c.EvidenceWindowSeconds == nil {
		return 5
	}
	return *c.EvidenceWindowSeconds
}

// GetRetryPenalty returns the retry_penalty value or the default.
func (c *TuningConfig) GetRetryPenalty() float64 {
	if c.RetryPenalty == nil {
		return 0.7
	}
	return *c.RetryPenalty
}

// GetReinforcementIncrement returns the reinforcement_increment value or the default.
func (c *TuningConfig) GetReinforcementIncrement() float64 {
	if c.ReinforcementIncrement == nil {
		return 4.0
	}
	return *c.ReinforcementIncrement
}

// GetBaseRouteQuality returns the base_route_quality value or the default.
func (c *TuningConfig) GetBaseRouteQuality() int {
	if c.BaseRouteQuality == nil {
		return 10
	}
	return *c.BaseRouteQuality
}

// GetMaxRouteQuality returns the max_route_quality value or the default.
func (c *TuningConfig) GetMaxRouteQuality() int {
	if c.MaxRouteQuality == nil {
		return 255
	}
	return *c.MaxRouteQuality
}

// GetMaxRoutesPerDest returns the max_routes_per_dest value or the default.
func (c *TuningConfig) GetMaxRoutesPerDest() int {
	if c.MaxRoutesPerDest == nil {
		return 3
	}
	return *c.MaxRoutesPerDest
}

// GetRebuildDebounce parses and returns the rebuild_debounce as a duration.
func (c *TuningConfig) GetRebuildDebounce() time.Duration {
	if c.RebuildDebounce == nil || *c.RebuildDebounce == "" {
		return 250 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.RebuildDebounce)
	if err != nil {
		return 250 * time.Millisecond
	}
	return d
}

// GetLayoutSeed returns the layout_seed value or the default.
func (c *TuningConfig) GetLayoutSeed() int64 {
	if c.LayoutSeed == nil {
		return 1
	}
	return *c.LayoutSeed
}

// GetDuplicateWindowSeconds returns the duplicate_window_seconds value or the default.
func (c *TuningConfig) GetDuplicateWindowSeconds() int {
	if c.DuplicateWindowSeconds == nil {
		return 8
	}
	return *c.DuplicateWindowSeconds
}
