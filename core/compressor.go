package core

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/deepspace-relay/model"
)

// FieldPriority ranks how important a telemetry field is to the ground
// segment; lower-priority fields are the first casualties of a degraded
// link.
type FieldPriority string

const (
	PriorityCritical FieldPriority = "critical"
	PriorityHigh     FieldPriority = "high"
	PriorityMedium   FieldPriority = "medium"
	PriorityLow      FieldPriority = "low"
)

// BandwidthMode is the coarse link tier controlling which fields survive
// compression. It is derived upstream from the anomaly severity trend.
type BandwidthMode string

const (
	BandwidthCritical BandwidthMode = "critical"
	BandwidthLow      BandwidthMode = "low"
	BandwidthNormal   BandwidthMode = "normal"
	BandwidthHigh     BandwidthMode = "high"
)

// priorityAdmitted maps a bandwidth mode to the priorities it transmits.
// The sets are nested by construction: critical ⊆ low ⊆ normal ⊆ high.
var priorityAdmitted = map[BandwidthMode]map[FieldPriority]bool{
	BandwidthCritical: {PriorityCritical: true},
	BandwidthLow:      {PriorityCritical: true, PriorityHigh: true},
	BandwidthNormal:   {PriorityCritical: true, PriorityHigh: true, PriorityMedium: true},
	BandwidthHigh:     {PriorityCritical: true, PriorityHigh: true, PriorityMedium: true, PriorityLow: true},
}

// CompressorConfig assigns each wire field a priority and each priority a
// decimal precision for numeric rounding. Critical fields pass through at
// full precision.
type CompressorConfig struct {
	Priorities map[string]FieldPriority `yaml:"priorities"`
	Precision  map[FieldPriority]int    `yaml:"precision"`
}

// DefaultCompressorConfig returns the stock field table.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		Priorities: map[string]FieldPriority{
			"spacecraft_id": PriorityCritical,
			"timestamp":     PriorityCritical,
			"sequence":      PriorityCritical,
			"mode":          PriorityCritical,
			"energy_level":  PriorityCritical,
			"position_x":    PriorityHigh,
			"position_y":    PriorityHigh,
			"position_z":    PriorityHigh,
			"velocity_x":    PriorityHigh,
			"velocity_y":    PriorityHigh,
			"velocity_z":    PriorityHigh,
			"temperature":   PriorityMedium,
			"radiation":     PriorityLow,
		},
		Precision: map[FieldPriority]int{
			PriorityHigh:   4,
			PriorityMedium: 2,
			PriorityLow:    1,
		},
	}
}

// AdaptiveCompressor performs priority-based field filtering and precision
// reduction keyed to a bandwidth mode, then compresses the serialized
// subset with zstd. Safe for concurrent use; the encoder is stateless
// with EncodeAll.
type AdaptiveCompressor struct {
	cfg     CompressorConfig
	encoder *zstd.Encoder
}

// NewAdaptiveCompressor builds a compressor; the zstd encoder is
// configured once and reused.
func NewAdaptiveCompressor(cfg CompressorConfig) (*AdaptiveCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	return &AdaptiveCompressor{cfg: cfg, encoder: enc}, nil
}

// FieldsFor returns the sorted wire-field names transmitted in the given
// bandwidth mode. An unknown mode falls back to normal.
func (c *AdaptiveCompressor) FieldsFor(mode BandwidthMode) []string {
	admitted, ok := priorityAdmitted[mode]
	if !ok {
		admitted = priorityAdmitted[BandwidthNormal]
	}
	var fields []string
	for name, prio := range c.cfg.Priorities {
		if admitted[prio] {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// Compress selects, rounds, serializes, and compresses the report's
// fields for the given bandwidth mode.
func (c *AdaptiveCompressor) Compress(r *model.TelemetryReport, mode BandwidthMode) (*model.CompressedPayload, error) {
	admitted, ok := priorityAdmitted[mode]
	if !ok {
		mode = BandwidthNormal
		admitted = priorityAdmitted[mode]
	}

	values := c.wireValues(r)
	payload := make(map[string]any, len(values))
	for name, v := range values {
		prio, known := c.cfg.Priorities[name]
		if !known || !admitted[prio] {
			continue
		}
		if f, isNum := v.(float64); isNum {
			if digits, hasPrecision := c.cfg.Precision[prio]; hasPrecision {
				v = roundTo(f, digits)
			}
		}
		payload[name] = v
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}
	return &model.CompressedPayload{
		BandwidthMode: string(mode),
		RawBytes:      len(raw),
		Data:          c.encoder.EncodeAll(raw, nil),
	}, nil
}

// wireValues flattens the report into the wire-field table the priority
// map is keyed by.
func (c *AdaptiveCompressor) wireValues(r *model.TelemetryReport) map[string]any {
	return map[string]any{
		"spacecraft_id": r.SpacecraftID,
		"timestamp":     r.Timestamp,
		"sequence":      r.Sequence,
		"mode":          string(r.Mode),
		"energy_level":  r.Energy(),
		"position_x":    r.Position.X,
		"position_y":    r.Position.Y,
		"position_z":    r.Position.Z,
		"velocity_x":    r.Velocity.X,
		"velocity_y":    r.Velocity.Y,
		"velocity_z":    r.Velocity.Z,
		"temperature":   r.Temperature,
		"radiation":     r.Radiation(),
	}
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
