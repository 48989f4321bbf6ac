package model

import "time"

// Mode is a spacecraft operating mode.
type Mode string

const (
	ModeNormal      Mode = "NORMAL"
	ModeSafe        Mode = "SAFE"
	ModeScience     Mode = "SCIENCE"
	ModeComms       Mode = "COMMS"
	ModeMaintenance Mode = "MAINTENANCE"
)

// ValidMode reports whether m is one of the known operating modes.
func ValidMode(m Mode) bool {
	switch m {
	case ModeNormal, ModeSafe, ModeScience, ModeComms, ModeMaintenance:
		return true
	}
	return false
}

// FECParams describes the forward-error-correction parameters annotated on
// an outgoing report. Descriptive metadata only; no encoding is performed.
type FECParams struct {
	DataBytes        int `json:"data_bytes"`
	ParityBytes      int `json:"parity_bytes"`
	CorrectableBytes int `json:"correctable_bytes"`
}

// CompressedPayload is the result of bandwidth-adaptive compression for a
// single report: the zstd-compressed JSON of the selected field subset.
type CompressedPayload struct {
	BandwidthMode string `json:"bandwidth_mode"`
	RawBytes      int    `json:"raw_bytes"`
	Data          []byte `json:"data"`
}

// TelemetryReport is one spacecraft state snapshot.
//
// Fields up to Sequence are set by the telemetry source and are immutable
// once received; each pipeline stage works on a copy and only extends the
// derived fields below. RadiationLevel, EnergyLevel, and Mode are optional
// on the wire and resolved once at ingestion via Normalize.
type TelemetryReport struct {
	SpacecraftID string    `json:"spacecraft_id"`
	Timestamp    time.Time `json:"timestamp"`
	Position     Vec3      `json:"position"`
	Velocity     Vec3      `json:"velocity"`
	Temperature  float64   `json:"temperature"`

	RadiationLevel *float64 `json:"radiation_level,omitempty"`
	EnergyLevel    *float64 `json:"energy_level,omitempty"` // percent
	Mode           Mode     `json:"mode,omitempty"`

	Sequence uint64 `json:"sequence"`

	// Derived fields, set by the relay pipeline.
	AnomalyCount        int                `json:"anomaly_count,omitempty"`
	AnomalySeverity     Severity           `json:"anomaly_severity,omitempty"`
	AnomalyDescriptions []string           `json:"anomaly_descriptions,omitempty"`
	DopplerShiftHz      float64            `json:"doppler_shift_hz,omitempty"`
	FEC                 *FECParams         `json:"fec,omitempty"`
	Compressed          *CompressedPayload `json:"compressed,omitempty"`
	Checksum            float64            `json:"checksum,omitempty"`
}

// Defaults applied by Normalize when optional fields are absent.
const (
	DefaultEnergyLevel    = 100.0
	DefaultRadiationLevel = 0.0
)

// Normalize resolves the optional fields in place so downstream stages can
// read them without presence checks. Called exactly once at ingestion.
func (r *TelemetryReport) Normalize() {
	if r.EnergyLevel == nil {
		e := DefaultEnergyLevel
		r.EnergyLevel = &e
	}
	if r.RadiationLevel == nil {
		rad := DefaultRadiationLevel
		r.RadiationLevel = &rad
	}
	if !ValidMode(r.Mode) {
		r.Mode = ModeNormal
	}
}

// Energy returns the resolved energy level percentage.
func (r *TelemetryReport) Energy() float64 {
	if r.EnergyLevel == nil {
		return DefaultEnergyLevel
	}
	return *r.EnergyLevel
}

// Radiation returns the resolved radiation level.
func (r *TelemetryReport) Radiation() float64 {
	if r.RadiationLevel == nil {
		return DefaultRadiationLevel
	}
	return *r.RadiationLevel
}

// Clone returns a deep copy of the report, so a pipeline stage can extend
// it without mutating its input.
func (r *TelemetryReport) Clone() *TelemetryReport {
	if r == nil {
		return nil
	}
	cp := *r
	if r.RadiationLevel != nil {
		v := *r.RadiationLevel
		cp.RadiationLevel = &v
	}
	if r.EnergyLevel != nil {
		v := *r.EnergyLevel
		cp.EnergyLevel = &v
	}
	if r.AnomalyDescriptions != nil {
		cp.AnomalyDescriptions = append([]string(nil), r.AnomalyDescriptions...)
	}
	if r.FEC != nil {
		f := *r.FEC
		cp.FEC = &f
	}
	if r.Compressed != nil {
		c := *r.Compressed
		c.Data = append([]byte(nil), r.Compressed.Data...)
		cp.Compressed = &c
	}
	return &cp
}

// Minimal returns the empty-valued stand-in report returned when a gate or
// the channel drops the original. Identity fields are preserved so the
// source can correlate the response.
func (r *TelemetryReport) Minimal() *TelemetryReport {
	if r == nil {
		return &TelemetryReport{}
	}
	return &TelemetryReport{
		SpacecraftID: r.SpacecraftID,
		Timestamp:    r.Timestamp,
		Sequence:     r.Sequence,
	}
}
