package core

import (
	"strings"
	"sync"
	"time"

	"github.com/signalsfoundry/deepspace-relay/model"
)

// ScienceTarget is a point of interest the decision engine steers craft
// toward when they pass nearby.
type ScienceTarget struct {
	Name     string     `yaml:"name"`
	Position model.Vec3 `yaml:"position"`
	Active   bool       `yaml:"active"`
}

// DecisionConfig is the tuning surface for the autonomous controller. All
// thresholds are energy percentages unless noted.
type DecisionConfig struct {
	Cooldown            time.Duration   `yaml:"cooldown"`
	EnergyCritical      float64         `yaml:"energy_critical"`
	EnergyMin           float64         `yaml:"energy_min"`
	EnergyRecovery      float64         `yaml:"energy_recovery"`
	EnergyScience       float64         `yaml:"energy_science"`
	StrikeLimit         int             `yaml:"strike_limit"`
	ScienceRangeKm      float64         `yaml:"science_range_km"`
	ScienceExitChance   float64         `yaml:"science_exit_chance"`
	MaintenanceInterval time.Duration   `yaml:"maintenance_interval"`
	MaintenanceDuration time.Duration   `yaml:"maintenance_duration"`
	CriticalMarker      string          `yaml:"critical_marker"`
	Targets             []ScienceTarget `yaml:"targets"`

	CoolingBandLowC  float64 `yaml:"cooling_band_low_c"`
	CoolingBandHighC float64 `yaml:"cooling_band_high_c"`
	HeatingBandLowC  float64 `yaml:"heating_band_low_c"`
	HeatingBandHighC float64 `yaml:"heating_band_high_c"`
}

// DefaultDecisionConfig returns the stock controller tuning.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		Cooldown:            10 * time.Second,
		EnergyCritical:      15,
		EnergyMin:           30,
		EnergyRecovery:      60,
		EnergyScience:       70,
		StrikeLimit:         3,
		ScienceRangeKm:      1000,
		ScienceExitChance:   0.20,
		MaintenanceInterval: 300 * time.Second,
		MaintenanceDuration: 30 * time.Second,
		CriticalMarker:      "critical",
		CoolingBandLowC:     40,
		CoolingBandHighC:    50,
		HeatingBandLowC:     -50,
		HeatingBandHighC:    -40,
	}
}

// historyDepth bounds the per-spacecraft rings of recent observations.
const historyDepth = 100

// sourceHistory is the per-spacecraft controller state. It lives for the
// process lifetime, created on first report. One lock per spacecraft so
// unrelated craft never serialize on each other.
type sourceHistory struct {
	mu sync.Mutex

	positions    []model.Vec3
	temperatures []float64
	energies     []float64
	modes        []model.Mode

	strikes         int
	lastCommand     time.Time
	lastMaintenance time.Time
}

// observe appends one cycle's readings, evicting the oldest beyond
// historyDepth, and rolls the strike counter. Callers must hold mu.
func (h *sourceHistory) observe(r *model.TelemetryReport, anomalous bool) {
	h.positions = appendBounded(h.positions, r.Position)
	h.temperatures = appendBounded(h.temperatures, r.Temperature)
	h.energies = appendBounded(h.energies, r.Energy())
	h.modes = appendBounded(h.modes, r.Mode)

	if anomalous {
		h.strikes++
	} else if h.strikes > 0 {
		h.strikes--
	}
}

func appendBounded[T any](ring []T, v T) []T {
	ring = append(ring, v)
	if len(ring) > historyDepth {
		ring = ring[1:]
	}
	return ring
}

// DecisionEngine turns anomalies and trends into commands for each
// spacecraft, enforcing a per-craft cooldown and a mode state machine.
// Safe for concurrent use; histories are locked per spacecraft.
type DecisionEngine struct {
	cfg DecisionConfig

	regMu     sync.Mutex
	histories map[string]*sourceHistory

	rng RandSource
	now func() time.Time
}

// NewDecisionEngine builds the controller. A nil clock uses wall time.
func NewDecisionEngine(cfg DecisionConfig, rng RandSource, now func() time.Time) *DecisionEngine {
	if now == nil {
		now = time.Now
	}
	return &DecisionEngine{
		cfg:       cfg,
		histories: make(map[string]*sourceHistory),
		rng:       rng,
		now:       now,
	}
}

// history returns the per-craft state, creating it on first report.
func (e *DecisionEngine) history(id string) *sourceHistory {
	e.regMu.Lock()
	defer e.regMu.Unlock()
	h, ok := e.histories[id]
	if !ok {
		h = &sourceHistory{lastMaintenance: e.now()}
		e.histories[id] = h
	}
	return h
}

// Strikes returns the current strike counter for a spacecraft.
func (e *DecisionEngine) Strikes(id string) int {
	h := e.history(id)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.strikes
}

// Decide evaluates one cycle for the report's spacecraft and returns the
// commands to issue, possibly none. The history rings and strike counter
// are always updated, even when the cooldown suppresses command output.
//
// Rules in priority order: critical escalation pre-empts everything else
// for the cycle; otherwise one mode transition at most (energy recovery,
// low-energy entry, science opportunity, scheduled maintenance,
// maintenance completion, first match wins) plus an independent thermal
// command that may co-occur with it.
func (e *DecisionEngine) Decide(r *model.TelemetryReport, findings []model.AnomalyFinding) []model.Command {
	h := e.history(r.SpacecraftID)
	h.mu.Lock()
	defer h.mu.Unlock()

	now := e.now()
	h.observe(r, len(findings) > 0)

	// Cooldown gate: never two commands for the same craft inside the window.
	if !h.lastCommand.IsZero() && now.Sub(h.lastCommand) < e.cfg.Cooldown {
		return nil
	}

	energy := r.Energy()
	mode := r.Mode

	if e.criticalCondition(findings, h.strikes, energy) {
		if mode == model.ModeSafe {
			return nil
		}
		return e.emit(h, now, modeChange(r.SpacecraftID, model.ModeSafe, "critical escalation", now))
	}

	var cmds []model.Command

	if c, ok := e.modeRule(r, h, mode, energy, now); ok {
		cmds = append(cmds, c)
	}
	if c, ok := e.thermalRule(r, now); ok {
		cmds = append(cmds, c)
	}
	if len(cmds) == 0 {
		return nil
	}
	return e.emit(h, now, cmds...)
}

// criticalCondition implements the rule-2 escalation predicate.
func (e *DecisionEngine) criticalCondition(findings []model.AnomalyFinding, strikes int, energy float64) bool {
	if len(findings) > 1 {
		return true
	}
	if strikes >= e.cfg.StrikeLimit {
		return true
	}
	if energy <= e.cfg.EnergyCritical {
		return true
	}
	marker := e.cfg.CriticalMarker
	if marker == "" {
		marker = "critical"
	}
	for _, f := range findings {
		if strings.Contains(f.Description, marker) {
			return true
		}
	}
	return false
}

// modeRule evaluates the non-escalation mode transitions in priority
// order, returning at most one MODE_CHANGE. Callers must hold h.mu.
func (e *DecisionEngine) modeRule(r *model.TelemetryReport, h *sourceHistory, mode model.Mode, energy float64, now time.Time) (model.Command, bool) {
	// Energy recovery out of SAFE.
	if mode == model.ModeSafe && energy > e.cfg.EnergyRecovery && h.strikes == 0 {
		return modeChange(r.SpacecraftID, model.ModeNormal, "energy recovered", now), true
	}

	// Low-energy entry into SAFE.
	if energy <= e.cfg.EnergyMin && mode != model.ModeSafe {
		return modeChange(r.SpacecraftID, model.ModeSafe, "energy low", now), true
	}

	// Science opportunity.
	if (mode == model.ModeNormal || mode == model.ModeScience) && energy > e.cfg.EnergyScience {
		inRange := e.targetInRange(r.Position)
		if inRange && mode != model.ModeScience {
			return modeChange(r.SpacecraftID, model.ModeScience, "science target in range", now), true
		}
		if mode == model.ModeScience && !inRange && e.rng.Float64() < e.cfg.ScienceExitChance {
			return modeChange(r.SpacecraftID, model.ModeNormal, "observation complete", now), true
		}
	}

	// Scheduled maintenance.
	if now.Sub(h.lastMaintenance) > e.cfg.MaintenanceInterval &&
		mode != model.ModeSafe && mode != model.ModeMaintenance &&
		energy > e.cfg.EnergyRecovery {
		h.lastMaintenance = now
		return modeChange(r.SpacecraftID, model.ModeMaintenance, "scheduled maintenance", now), true
	}

	// Maintenance completion.
	if mode == model.ModeMaintenance && now.Sub(h.lastMaintenance) > e.cfg.MaintenanceDuration {
		return modeChange(r.SpacecraftID, model.ModeNormal, "maintenance complete", now), true
	}

	return model.Command{}, false
}

// thermalRule emits a thermal-control command when the temperature drifts
// into a correction band. Independent of mode transitions.
func (e *DecisionEngine) thermalRule(r *model.TelemetryReport, now time.Time) (model.Command, bool) {
	t := r.Temperature
	switch {
	case t > e.cfg.CoolingBandLowC && t < e.cfg.CoolingBandHighC:
		return model.NewCommand(r.SpacecraftID, model.CommandThermalControl,
			map[string]string{model.ParamAction: model.ActionCool}, now), true
	case t > e.cfg.HeatingBandLowC && t < e.cfg.HeatingBandHighC:
		return model.NewCommand(r.SpacecraftID, model.CommandThermalControl,
			map[string]string{model.ParamAction: model.ActionHeat}, now), true
	}
	return model.Command{}, false
}

func (e *DecisionEngine) targetInRange(pos model.Vec3) bool {
	for _, t := range e.cfg.Targets {
		if !t.Active {
			continue
		}
		if pos.DistanceTo(t.Position) <= e.cfg.ScienceRangeKm {
			return true
		}
	}
	return false
}

// emit records the command timestamp, re-arming the cooldown. Callers must
// hold h.mu.
func (e *DecisionEngine) emit(h *sourceHistory, now time.Time, cmds ...model.Command) []model.Command {
	h.lastCommand = now
	return cmds
}

func modeChange(spacecraftID string, target model.Mode, reason string, now time.Time) model.Command {
	return model.NewCommand(spacecraftID, model.CommandModeChange, map[string]string{
		model.ParamMode:   string(target),
		model.ParamReason: reason,
	}, now)
}
