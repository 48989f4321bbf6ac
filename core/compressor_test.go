package core

import (
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/deepspace-relay/model"
)

func newTestCompressor(t *testing.T) *AdaptiveCompressor {
	t.Helper()
	c, err := NewAdaptiveCompressor(DefaultCompressorConfig())
	if err != nil {
		t.Fatalf("NewAdaptiveCompressor failed: %v", err)
	}
	return c
}

func decodePayload(t *testing.T, p *model.CompressedPayload) map[string]any {
	t.Helper()
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(p.Data, nil)
	if err != nil {
		t.Fatalf("decompress payload: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return out
}

func fullReport() *model.TelemetryReport {
	rad := 250.0
	energy := 88.123456
	return &model.TelemetryReport{
		SpacecraftID:   "Voyager-1",
		Position:       model.Vec3{X: 1234.56789, Y: 2, Z: 3},
		Velocity:       model.Vec3{X: 4.987654321, Y: 5, Z: 6},
		Temperature:    21.5678,
		RadiationLevel: &rad,
		EnergyLevel:    &energy,
		Mode:           model.ModeNormal,
		Sequence:       42,
	}
}

func TestFieldSubsetLaw(t *testing.T) {
	c := newTestCompressor(t)

	tiers := []BandwidthMode{BandwidthCritical, BandwidthLow, BandwidthNormal, BandwidthHigh}
	var prev map[string]bool
	for _, mode := range tiers {
		fields := c.FieldsFor(mode)
		cur := make(map[string]bool, len(fields))
		for _, f := range fields {
			cur[f] = true
		}
		for f := range prev {
			if !cur[f] {
				t.Fatalf("mode %q lost field %q present in the lower tier", mode, f)
			}
		}
		prev = cur
	}
}

func TestCriticalModeTransmitsOnlyCriticalFields(t *testing.T) {
	c := newTestCompressor(t)

	payload, err := c.Compress(fullReport(), BandwidthCritical)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	got := decodePayload(t, payload)

	cfg := DefaultCompressorConfig()
	for name := range got {
		if cfg.Priorities[name] != PriorityCritical {
			t.Errorf("field %q (priority %q) leaked into critical mode", name, cfg.Priorities[name])
		}
	}
	// Critical fields are pass-through precision.
	if got["energy_level"].(float64) != 88.123456 {
		t.Errorf("energy_level should be unrounded, got %v", got["energy_level"])
	}
	if got["spacecraft_id"] != "Voyager-1" {
		t.Errorf("spacecraft_id missing or mangled: %v", got["spacecraft_id"])
	}
}

func TestPrecisionRounding(t *testing.T) {
	c := newTestCompressor(t)

	payload, err := c.Compress(fullReport(), BandwidthHigh)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	got := decodePayload(t, payload)

	if v := got["position_x"].(float64); v != 1234.5679 {
		t.Errorf("high-priority field rounds to 4 digits: got %v", v)
	}
	if v := got["temperature"].(float64); v != 21.57 {
		t.Errorf("medium-priority field rounds to 2 digits: got %v", v)
	}
	if v := got["radiation"].(float64); v != 250.0 {
		t.Errorf("low-priority field rounds to 1 digit: got %v", v)
	}
}

func TestNormalModeDropsLowPriority(t *testing.T) {
	c := newTestCompressor(t)

	payload, err := c.Compress(fullReport(), BandwidthNormal)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	got := decodePayload(t, payload)
	if _, present := got["radiation"]; present {
		t.Error("low-priority radiation should be dropped in normal mode")
	}
	if _, present := got["temperature"]; !present {
		t.Error("medium-priority temperature should survive normal mode")
	}
}

func TestUnknownModeFallsBackToNormal(t *testing.T) {
	c := newTestCompressor(t)
	payload, err := c.Compress(fullReport(), BandwidthMode("bogus"))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if payload.BandwidthMode != string(BandwidthNormal) {
		t.Fatalf("unknown mode should fall back to normal, got %q", payload.BandwidthMode)
	}
}

func TestPayloadRecordsRawSize(t *testing.T) {
	c := newTestCompressor(t)
	payload, err := c.Compress(fullReport(), BandwidthHigh)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if payload.RawBytes <= 0 {
		t.Fatalf("raw size should be positive, got %d", payload.RawBytes)
	}
}
