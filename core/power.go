package core

import (
	"sync"
	"time"
)

// Power operation names. The rate table is keyed by these; they double as
// the power modes the pipeline switches between.
const (
	PowerOpIdle         = "idle"
	PowerOpCollection   = "telemetry_collection"
	PowerOpTransmission = "data_transmission"
)

// PowerConfig describes the relay's power envelope. Rates and capacity are
// watt-hours and watts; the exact units only need to be self-consistent.
type PowerConfig struct {
	MaxCapacityWh   float64            `yaml:"max_capacity_wh"`
	GenerationW     float64            `yaml:"generation_w"`
	ReserveFraction float64            `yaml:"reserve_fraction"`
	RatesW          map[string]float64 `yaml:"rates_w"`
	InitialMode     string             `yaml:"initial_mode"`
}

// DefaultPowerConfig returns the stock rate table.
func DefaultPowerConfig() PowerConfig {
	return PowerConfig{
		MaxCapacityWh:   1000,
		GenerationW:     85,
		ReserveFraction: 0.10,
		RatesW: map[string]float64{
			PowerOpIdle:         10,
			PowerOpCollection:   35,
			PowerOpTransmission: 60,
		},
		InitialMode: PowerOpIdle,
	}
}

// PowerSnapshot is a point-in-time view of the budget.
type PowerSnapshot struct {
	CapacityWh float64
	Mode       string
	UpdatedAt  time.Time
}

// PowerBudget tracks a rechargeable capacity and gates whether an
// operation may proceed. Accrual and drain are computed lazily from
// elapsed time on every read; there is no background timer, so repeated
// immediate calls observe elapsed ≈ 0 and are idempotent-safe.
//
// PowerBudget is safe for concurrent use. No method blocks; CanPerform is
// a point-in-time admission check, not a queue.
type PowerBudget struct {
	mu sync.Mutex

	cfg        PowerConfig
	capacityWh float64
	mode       string
	lastUpdate time.Time

	now func() time.Time
}

// NewPowerBudget starts a budget at full capacity in the configured
// initial mode. A nil clock uses wall time.
func NewPowerBudget(cfg PowerConfig, now func() time.Time) *PowerBudget {
	if now == nil {
		now = time.Now
	}
	mode := cfg.InitialMode
	if _, ok := cfg.RatesW[mode]; !ok {
		mode = PowerOpIdle
	}
	return &PowerBudget{
		cfg:        cfg,
		capacityWh: cfg.MaxCapacityWh,
		mode:       mode,
		lastUpdate: now(),
		now:        now,
	}
}

// Update recomputes capacity from the time elapsed since the previous
// update and returns a snapshot. Capacity is always clamped to
// [0, MaxCapacityWh].
func (p *PowerBudget) Update() PowerSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recompute()
	return PowerSnapshot{CapacityWh: p.capacityWh, Mode: p.mode, UpdatedAt: p.lastUpdate}
}

// SetMode recomputes capacity, then switches the active consumption rate.
// It returns false for an unrecognized mode, leaving state untouched.
func (p *PowerBudget) SetMode(mode string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.cfg.RatesW[mode]; !ok {
		return false
	}
	p.recompute()
	p.mode = mode
	return true
}

// CanPerform recomputes capacity and reports whether the projected
// capacity after running operation for durationSeconds stays at or above
// the reserve margin. An unknown operation is denied, mirroring SetMode.
//
// This is the pipeline's sole backpressure mechanism: a false answer means
// the caller skips the gated stage, it never waits.
func (p *PowerBudget) CanPerform(operation string, durationSeconds float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rate, ok := p.cfg.RatesW[operation]
	if !ok {
		return false
	}
	p.recompute()
	cost := rate * durationSeconds / 3600.0
	return p.capacityWh-cost >= p.Reserve()
}

// Reserve returns the configured reserve margin in watt-hours.
func (p *PowerBudget) Reserve() float64 {
	return p.cfg.ReserveFraction * p.cfg.MaxCapacityWh
}

// recompute applies elapsed-time accrual/drain. Callers must hold mu.
func (p *PowerBudget) recompute() {
	now := p.now()
	elapsed := now.Sub(p.lastUpdate).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	net := p.cfg.GenerationW - p.cfg.RatesW[p.mode]
	p.capacityWh += net * elapsed / 3600.0
	if p.capacityWh > p.cfg.MaxCapacityWh {
		p.capacityWh = p.cfg.MaxCapacityWh
	}
	if p.capacityWh < 0 {
		p.capacityWh = 0
	}
	p.lastUpdate = now
}
