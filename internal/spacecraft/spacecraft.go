// Package spacecraft simulates the telemetry source: orbital motion, a
// solar power budget, environmental drift, and execution of the relay's
// autonomous commands.
package spacecraft

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/model"
)

// Trajectory-adjust parameter keys.
const (
	ParamVelocityX = "velocity_x"
	ParamVelocityY = "velocity_y"
	ParamVelocityZ = "velocity_z"
)

// Config is one craft's simulation tuning.
type Config struct {
	ID string `yaml:"id"`

	Elements KeplerianElements `yaml:"elements"`
	// TLE lines, when set, switch the craft to SGP4 propagation.
	TLE1 string `yaml:"tle1"`
	TLE2 string `yaml:"tle2"`

	// Solar power model. The sun sits at a fixed point in the mission
	// frame; panel output falls with the square of the distance to it.
	SunPosition     model.Vec3 `yaml:"sun_position"`
	SolarConstantW  float64    `yaml:"solar_constant_w"`
	PanelAreaM2     float64    `yaml:"panel_area_m2"`
	PanelEfficiency float64    `yaml:"panel_efficiency"`

	BatteryCapacityWh float64 `yaml:"battery_capacity_wh"`
	// BaseDrainPercent is lost every update regardless of the budget.
	BaseDrainPercent float64 `yaml:"base_drain_percent"`
	// UpdateInterval is the energy integration step per telemetry cycle.
	UpdateInterval time.Duration `yaml:"update_interval"`

	// AnomalyChance is the per-update probability of an orbital anomaly;
	// AnomalyMinInterval rate-limits them.
	AnomalyChance      float64       `yaml:"anomaly_chance"`
	AnomalyMinInterval time.Duration `yaml:"anomaly_min_interval"`
}

// DefaultConfig returns the stock craft tuning.
func DefaultConfig(id string) Config {
	return Config{
		ID:                 id,
		SunPosition:        model.Vec3{X: -1.5 * core.AUKm},
		SolarConstantW:     1361,
		PanelAreaM2:        15,
		PanelEfficiency:    0.25,
		BatteryCapacityWh:  1000,
		BaseDrainPercent:   0.01,
		UpdateInterval:     5 * time.Second,
		AnomalyChance:      0.02,
		AnomalyMinInterval: time.Minute,
	}
}

// subsystem consumption in watts; mode multipliers applied on a copy.
var baseConsumptionW = map[string]float64{
	"comms":       25,
	"instruments": 15,
	"computer":    10,
	"navigation":  5,
	"thermal":     10,
}

// Spacecraft holds one simulated craft's mutable state. Safe for
// concurrent use: telemetry generation and command enqueue may race.
type Spacecraft struct {
	cfg    Config
	motion MotionModel
	rng    core.RandSource
	log    logging.Logger

	mu          sync.Mutex
	position    model.Vec3
	velocity    model.Vec3
	temperature float64
	radiation   float64
	energy      float64
	mode        model.Mode
	sequence    uint64
	lastAnomaly time.Time
	pending     []model.Command
}

// New builds a craft at full charge in NORMAL mode, with initial
// temperature and radiation drawn from their nominal bands.
func New(cfg Config, motion MotionModel, rng core.RandSource, log logging.Logger) *Spacecraft {
	if log == nil {
		log = logging.Noop()
	}
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	return &Spacecraft{
		cfg:         cfg,
		motion:      motion,
		rng:         rng,
		log:         log,
		temperature: uniform(-20, 20),
		radiation:   uniform(100, 300),
		energy:      100,
		mode:        model.ModeNormal,
	}
}

// ID returns the craft identifier.
func (s *Spacecraft) ID() string { return s.cfg.ID }

// Mode returns the current operating mode.
func (s *Spacecraft) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Energy returns the current battery percentage.
func (s *Spacecraft) Energy() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.energy
}

// Enqueue accepts a command addressed to this craft for execution on the
// next update cycle. Commands for other craft are dropped.
func (s *Spacecraft) Enqueue(ctx context.Context, cmd model.Command) {
	if cmd.SpacecraftID != s.cfg.ID {
		s.log.Warn(ctx, "ignoring command for another craft",
			logging.String("spacecraft_id", s.cfg.ID),
			logging.String("addressed_to", cmd.SpacecraftID),
		)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, cmd)
	s.log.Info(ctx, "command queued",
		logging.String("spacecraft_id", s.cfg.ID),
		logging.String("type", string(cmd.Type)),
	)
}

// GenerateReport advances the craft to simTime and emits one telemetry
// report: commands execute first, then motion, power, and environment.
func (s *Spacecraft) GenerateReport(ctx context.Context, simTime time.Time) *model.TelemetryReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executeCommands(ctx)
	s.propagate(ctx, simTime)
	s.updateEnergy()

	uniform := func(lo, hi float64) float64 { return lo + s.rng.Float64()*(hi-lo) }
	s.temperature += uniform(-1, 1)
	s.radiation += uniform(-10, 10)
	if s.radiation < 0 {
		s.radiation = 0
	}

	s.sequence++
	energy := s.energy
	radiation := s.radiation
	return &model.TelemetryReport{
		SpacecraftID:   s.cfg.ID,
		Timestamp:      simTime,
		Position:       s.position,
		Velocity:       s.velocity,
		Temperature:    s.temperature,
		RadiationLevel: &radiation,
		EnergyLevel:    &energy,
		Mode:           s.mode,
		Sequence:       s.sequence,
	}
}

// propagate moves the craft along its orbit, or injects a bounded
// deviation when an anomaly fires. Anomalies are rate-limited so the
// downstream detector sees isolated events, not a broken orbit.
func (s *Spacecraft) propagate(ctx context.Context, simTime time.Time) {
	pos, vel := s.motion.StateAt(simTime)
	s.position, s.velocity = pos, vel

	if s.rng.Float64() >= s.cfg.AnomalyChance {
		return
	}
	if !s.lastAnomaly.IsZero() && simTime.Sub(s.lastAnomaly) < s.cfg.AnomalyMinInterval {
		return
	}
	s.lastAnomaly = simTime

	factor := 1.05 + s.rng.Float64()*0.15
	if s.rng.Float64() < 0.5 {
		// Unexpected drift off the expected orbit.
		s.position = s.position.Add(s.velocity.Scale(factor))
		s.log.Warn(ctx, "orbital anomaly: position drift",
			logging.String("spacecraft_id", s.cfg.ID))
	} else {
		// Unexpected acceleration.
		s.velocity = s.velocity.Scale(factor)
		s.log.Warn(ctx, "orbital anomaly: velocity change",
			logging.String("spacecraft_id", s.cfg.ID))
	}
}

// updateEnergy integrates the solar power budget over one update
// interval and applies the base drain, clamping to [0, 100].
func (s *Spacecraft) updateEnergy() {
	net := s.powerBudgetW()
	intervalHours := s.cfg.UpdateInterval.Hours()
	changePercent := net * intervalHours / s.cfg.BatteryCapacityWh * 100
	changePercent -= s.cfg.BaseDrainPercent

	s.energy += changePercent
	if s.energy > 100 {
		s.energy = 100
	}
	if s.energy < 0 {
		s.energy = 0
	}
}

// powerBudgetW returns panel output minus mode-adjusted consumption.
// Negative when the craft is too far from the sun to break even.
func (s *Spacecraft) powerBudgetW() float64 {
	distanceAU := s.position.DistanceTo(s.cfg.SunPosition) / core.AUKm
	if distanceAU <= 0 {
		distanceAU = math.SmallestNonzeroFloat64
	}
	output := s.cfg.SolarConstantW / (distanceAU * distanceAU) * s.cfg.PanelAreaM2 * s.cfg.PanelEfficiency

	consumption := make(map[string]float64, len(baseConsumptionW))
	for k, v := range baseConsumptionW {
		consumption[k] = v
	}
	switch s.mode {
	case model.ModeSafe:
		consumption["comms"] *= 0.5
		consumption["instruments"] = 0
	case model.ModeScience:
		consumption["instruments"] *= 2
	case model.ModeComms:
		consumption["comms"] *= 2
		consumption["instruments"] *= 0.5
	}

	total := 0.0
	for _, v := range consumption {
		total += v
	}
	return output - total
}

// executeCommands drains the pending queue. Callers must hold mu.
func (s *Spacecraft) executeCommands(ctx context.Context) {
	for _, cmd := range s.pending {
		switch cmd.Type {
		case model.CommandModeChange:
			mode := model.Mode(cmd.Parameters[model.ParamMode])
			if model.ValidMode(mode) {
				s.log.Info(ctx, "mode change",
					logging.String("spacecraft_id", s.cfg.ID),
					logging.String("from", string(s.mode)),
					logging.String("to", string(mode)),
				)
				s.mode = mode
			}
		case model.CommandTrajectoryAdjust:
			s.velocity.X += parseFloat(cmd.Parameters[ParamVelocityX])
			s.velocity.Y += parseFloat(cmd.Parameters[ParamVelocityY])
			s.velocity.Z += parseFloat(cmd.Parameters[ParamVelocityZ])
			s.energy -= 1.0
			s.log.Info(ctx, "trajectory adjusted",
				logging.String("spacecraft_id", s.cfg.ID))
		case model.CommandThermalControl:
			switch cmd.Parameters[model.ParamAction] {
			case model.ActionCool:
				s.temperature -= 5
			case model.ActionHeat:
				s.temperature += 5
			}
			s.energy -= 0.5
			s.log.Info(ctx, "thermal control",
				logging.String("spacecraft_id", s.cfg.ID),
				logging.String("action", cmd.Parameters[model.ParamAction]),
			)
		}
	}
	s.pending = s.pending[:0]
	if s.energy < 0 {
		s.energy = 0
	}
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
