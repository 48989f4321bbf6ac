package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/deepspace-relay/model"
)

func newTestEngine(t *testing.T, floats ...float64) (*DecisionEngine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return NewDecisionEngine(DefaultDecisionConfig(), &stubRand{floats: floats}, clock.Now), clock
}

func reportInMode(mode model.Mode, energy float64) *model.TelemetryReport {
	e := energy
	r := &model.TelemetryReport{
		SpacecraftID: "Voyager-1",
		Mode:         mode,
		EnergyLevel:  &e,
		Position:     model.Vec3{X: 2 * AUKm, Y: 0, Z: 0},
		Velocity:     model.Vec3{X: 5, Y: 0, Z: 0},
		Temperature:  0,
	}
	r.Normalize()
	return r
}

func criticalFindings() []model.AnomalyFinding {
	return []model.AnomalyFinding{
		{Severity: model.SeverityCritical, Category: model.CategoryTemperature, Description: "temperature critically high: 90.0°C"},
		{Severity: model.SeverityCritical, Category: model.CategoryVelocity, Description: "velocity critical: 60.0 km/s exceeds 50.0 km/s"},
	}
}

func TestCriticalEscalationEmitsSingleSafeCommand(t *testing.T) {
	engine, _ := newTestEngine(t)

	cmds := engine.Decide(reportInMode(model.ModeNormal, 80), criticalFindings())
	if len(cmds) != 1 {
		t.Fatalf("expected exactly one command, got %d: %+v", len(cmds), cmds)
	}
	c := cmds[0]
	if c.Type != model.CommandModeChange {
		t.Fatalf("expected MODE_CHANGE, got %q", c.Type)
	}
	if c.Parameters[model.ParamMode] != string(model.ModeSafe) {
		t.Fatalf("expected SAFE target, got %q", c.Parameters[model.ParamMode])
	}
}

func TestCriticalEscalationNoopWhenAlreadySafe(t *testing.T) {
	engine, _ := newTestEngine(t)
	cmds := engine.Decide(reportInMode(model.ModeSafe, 80), criticalFindings())
	if len(cmds) != 0 {
		t.Fatalf("already SAFE: expected no commands, got %+v", cmds)
	}
}

func TestEnergyRecoveryReturnsToNormal(t *testing.T) {
	engine, _ := newTestEngine(t)

	cmds := engine.Decide(reportInMode(model.ModeSafe, 65), nil)
	if len(cmds) != 1 || cmds[0].Parameters[model.ParamMode] != string(model.ModeNormal) {
		t.Fatalf("expected MODE_CHANGE to NORMAL, got %+v", cmds)
	}
}

func TestLowEnergyEntersSafe(t *testing.T) {
	engine, _ := newTestEngine(t)

	cmds := engine.Decide(reportInMode(model.ModeNormal, 25), nil)
	if len(cmds) != 1 || cmds[0].Parameters[model.ParamMode] != string(model.ModeSafe) {
		t.Fatalf("expected MODE_CHANGE to SAFE on low energy, got %+v", cmds)
	}
}

func TestCooldownSuppressesSecondCommand(t *testing.T) {
	engine, clock := newTestEngine(t)

	if cmds := engine.Decide(reportInMode(model.ModeNormal, 25), nil); len(cmds) != 1 {
		t.Fatalf("setup: expected one command, got %+v", cmds)
	}
	clock.Advance(5 * time.Second)
	if cmds := engine.Decide(reportInMode(model.ModeNormal, 25), nil); len(cmds) != 0 {
		t.Fatalf("cooldown: expected no commands 5s after the last, got %+v", cmds)
	}
	clock.Advance(6 * time.Second)
	if cmds := engine.Decide(reportInMode(model.ModeNormal, 25), nil); len(cmds) != 1 {
		t.Fatalf("cooldown expired: expected a command, got %+v", cmds)
	}
}

func TestCooldownInvariantAcrossManyCycles(t *testing.T) {
	engine, clock := newTestEngine(t)

	var issued []time.Time
	for i := 0; i < 50; i++ {
		cmds := engine.Decide(reportInMode(model.ModeNormal, 25), nil)
		if len(cmds) > 0 {
			issued = append(issued, cmds[0].IssuedAt)
		}
		clock.Advance(3 * time.Second)
	}
	for i := 1; i < len(issued); i++ {
		if gap := issued[i].Sub(issued[i-1]); gap < 10*time.Second {
			t.Fatalf("commands %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestStrikeCounterMonotonicity(t *testing.T) {
	engine, clock := newTestEngine(t)
	id := "Voyager-1"

	warning := []model.AnomalyFinding{{
		Severity: model.SeverityWarning, Category: model.CategoryPosition,
		Description: "position warning: 6.00 AU beyond operational range of 5.00 AU",
	}}

	for i := 0; i < 2; i++ {
		engine.Decide(reportInMode(model.ModeNormal, 80), warning)
		clock.Advance(15 * time.Second)
	}
	if got := engine.Strikes(id); got != 2 {
		t.Fatalf("strikes after two anomalous cycles: got %d, want 2", got)
	}

	for i := 0; i < 5; i++ {
		engine.Decide(reportInMode(model.ModeNormal, 80), nil)
		clock.Advance(15 * time.Second)
	}
	if got := engine.Strikes(id); got != 0 {
		t.Fatalf("strikes should floor at 0, got %d", got)
	}
}

func TestStrikeLimitForcesSafe(t *testing.T) {
	engine, clock := newTestEngine(t)

	warning := []model.AnomalyFinding{{
		Severity: model.SeverityWarning, Category: model.CategoryPosition,
		Description: "position warning: drifting",
	}}

	var last []model.Command
	for i := 0; i < 3; i++ {
		last = engine.Decide(reportInMode(model.ModeNormal, 80), warning)
		clock.Advance(15 * time.Second)
	}
	if len(last) != 1 || last[0].Parameters[model.ParamMode] != string(model.ModeSafe) {
		t.Fatalf("third strike should force SAFE, got %+v", last)
	}
}

func TestThermalControlCoOccursWithModeCommand(t *testing.T) {
	engine, _ := newTestEngine(t)

	r := reportInMode(model.ModeNormal, 25)
	r.Temperature = 45
	cmds := engine.Decide(r, nil)
	if len(cmds) != 2 {
		t.Fatalf("expected mode + thermal commands, got %+v", cmds)
	}
	var sawMode, sawThermal bool
	for _, c := range cmds {
		switch c.Type {
		case model.CommandModeChange:
			sawMode = true
		case model.CommandThermalControl:
			sawThermal = true
			if c.Parameters[model.ParamAction] != model.ActionCool {
				t.Fatalf("expected COOLING action, got %q", c.Parameters[model.ParamAction])
			}
		}
	}
	if !sawMode || !sawThermal {
		t.Fatalf("expected both command kinds, got %+v", cmds)
	}
}

func TestThermalHeating(t *testing.T) {
	engine, _ := newTestEngine(t)

	r := reportInMode(model.ModeNormal, 80)
	r.Temperature = -45
	cmds := engine.Decide(r, nil)
	if len(cmds) != 1 || cmds[0].Parameters[model.ParamAction] != model.ActionHeat {
		t.Fatalf("expected HEATING command, got %+v", cmds)
	}
}

func TestScienceOpportunityEntry(t *testing.T) {
	cfg := DefaultDecisionConfig()
	cfg.Targets = []ScienceTarget{{
		Name:     "europa-flyby",
		Position: model.Vec3{X: 2 * AUKm, Y: 0, Z: 0},
		Active:   true,
	}}
	clock := newFakeClock()
	engine := NewDecisionEngine(cfg, &stubRand{}, clock.Now)

	cmds := engine.Decide(reportInMode(model.ModeNormal, 85), nil)
	if len(cmds) != 1 || cmds[0].Parameters[model.ParamMode] != string(model.ModeScience) {
		t.Fatalf("expected SCIENCE entry near active target, got %+v", cmds)
	}
}

func TestScienceIgnoresInactiveTargets(t *testing.T) {
	cfg := DefaultDecisionConfig()
	cfg.Targets = []ScienceTarget{{
		Name:     "europa-flyby",
		Position: model.Vec3{X: 2 * AUKm, Y: 0, Z: 0},
	}}
	clock := newFakeClock()
	engine := NewDecisionEngine(cfg, &stubRand{floats: []float64{0.9}}, clock.Now)

	if cmds := engine.Decide(reportInMode(model.ModeNormal, 85), nil); len(cmds) != 0 {
		t.Fatalf("inactive target should not trigger SCIENCE, got %+v", cmds)
	}
}

func TestScienceStochasticExit(t *testing.T) {
	cfg := DefaultDecisionConfig()

	clock := newFakeClock()
	exits := NewDecisionEngine(cfg, &stubRand{floats: []float64{0.1}}, clock.Now)
	cmds := exits.Decide(reportInMode(model.ModeScience, 85), nil)
	if len(cmds) != 1 || cmds[0].Parameters[model.ParamMode] != string(model.ModeNormal) {
		t.Fatalf("draw below exit chance should end observation, got %+v", cmds)
	}

	stays := NewDecisionEngine(cfg, &stubRand{floats: []float64{0.9}}, clock.Now)
	if cmds := stays.Decide(reportInMode(model.ModeScience, 85), nil); len(cmds) != 0 {
		t.Fatalf("draw above exit chance should stay in SCIENCE, got %+v", cmds)
	}
}

func TestScheduledMaintenanceCycle(t *testing.T) {
	engine, clock := newTestEngine(t, 0.9)

	// Not yet due.
	if cmds := engine.Decide(reportInMode(model.ModeComms, 80), nil); len(cmds) != 0 {
		t.Fatalf("maintenance not due yet, got %+v", cmds)
	}

	clock.Advance(301 * time.Second)
	cmds := engine.Decide(reportInMode(model.ModeComms, 80), nil)
	if len(cmds) != 1 || cmds[0].Parameters[model.ParamMode] != string(model.ModeMaintenance) {
		t.Fatalf("expected MAINTENANCE entry after interval, got %+v", cmds)
	}

	// Completion after the maintenance window.
	clock.Advance(31 * time.Second)
	cmds = engine.Decide(reportInMode(model.ModeMaintenance, 80), nil)
	if len(cmds) != 1 || cmds[0].Parameters[model.ParamMode] != string(model.ModeNormal) {
		t.Fatalf("expected NORMAL after maintenance window, got %+v", cmds)
	}
}

func TestHistoriesIndependentAcrossSpacecraft(t *testing.T) {
	engine, _ := newTestEngine(t)

	a := reportInMode(model.ModeNormal, 25)
	b := reportInMode(model.ModeNormal, 25)
	b.SpacecraftID = "Voyager-2"

	if cmds := engine.Decide(a, nil); len(cmds) != 1 {
		t.Fatalf("craft A: expected a command, got %+v", cmds)
	}
	// B's cooldown is independent of A's.
	if cmds := engine.Decide(b, nil); len(cmds) != 1 {
		t.Fatalf("craft B: expected a command, got %+v", cmds)
	}
}
