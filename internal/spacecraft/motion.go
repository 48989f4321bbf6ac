package spacecraft

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/model"
)

// MotionModel propagates a craft's position and velocity to a given
// simulation time.
type MotionModel interface {
	StateAt(simTime time.Time) (pos, vel model.Vec3)
}

// gravParamKm3S2 is the simplified gravitational parameter the orbital
// period derives from.
const gravParamKm3S2 = 3.98e13

// KeplerianElements describe an elliptical orbit in the mission frame.
type KeplerianElements struct {
	SemiMajorAxisKm float64 `yaml:"semi_major_axis_km"`
	Eccentricity    float64 `yaml:"eccentricity"`
	InclinationDeg  float64 `yaml:"inclination_deg"`
	InitialAngleRad float64 `yaml:"initial_angle_rad"`
	// TargetSpeedKmS scales the tangential velocity into the few-km/s
	// regime typical of deep-space cruise.
	TargetSpeedKmS float64 `yaml:"target_speed_km_s"`
}

// RandomElements draws plausible cruise elements: 0.5-1.2 AU orbits with
// mild eccentricity and inclination, 3-7 km/s.
func RandomElements(rng core.RandSource) KeplerianElements {
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	return KeplerianElements{
		SemiMajorAxisKm: uniform(0.5, 1.2) * core.AUKm,
		Eccentricity:    uniform(0.1, 0.3),
		InclinationDeg:  uniform(-10, 10),
		InitialAngleRad: uniform(0, 2*math.Pi),
		TargetSpeedKmS:  uniform(3, 7),
	}
}

// KeplerianModel propagates an elliptical orbit analytically from its
// epoch: angle advances at the mean orbital rate, position follows the
// conic equation, velocity is the scaled orbit tangent.
type KeplerianModel struct {
	elements KeplerianElements
	epoch    time.Time

	inclinationRad float64
	angularRateRad float64
}

// NewKeplerianModel fixes the orbit's epoch; StateAt is pure after this.
func NewKeplerianModel(elements KeplerianElements, epoch time.Time) *KeplerianModel {
	a := elements.SemiMajorAxisKm
	period := 2 * math.Pi * math.Sqrt(a*a*a/gravParamKm3S2)
	return &KeplerianModel{
		elements:       elements,
		epoch:          epoch,
		inclinationRad: elements.InclinationDeg * math.Pi / 180,
		angularRateRad: 2 * math.Pi / period,
	}
}

// StateAt implements MotionModel.
func (m *KeplerianModel) StateAt(simTime time.Time) (model.Vec3, model.Vec3) {
	angle := m.elements.InitialAngleRad + m.angularRateRad*simTime.Sub(m.epoch).Seconds()
	angle = math.Mod(angle, 2*math.Pi)

	pos := m.positionAt(angle)

	// Orbit tangent by finite difference, scaled to the target speed.
	const deltaAngle = 0.001
	ahead := m.positionAt(angle + deltaAngle)
	vel := ahead.Sub(pos).Scale(1 / deltaAngle)
	if speed := vel.Norm(); speed > 0 {
		vel = vel.Scale(m.elements.TargetSpeedKmS / speed)
	}
	return pos, vel
}

func (m *KeplerianModel) positionAt(angle float64) model.Vec3 {
	e := m.elements.Eccentricity
	r := m.elements.SemiMajorAxisKm * (1 - e*e) / (1 + e*math.Cos(angle))

	xOrbital := r * math.Cos(angle)
	yOrbital := r * math.Sin(angle)
	return model.Vec3{
		X: xOrbital,
		Y: yOrbital * math.Cos(m.inclinationRad),
		Z: yOrbital * math.Sin(m.inclinationRad),
	}
}

// SGP4Model propagates an Earth-orbit craft from a TLE. Positions and
// velocities are ECI kilometres.
type SGP4Model struct {
	sat satellite.Satellite
}

// NewSGP4ModelFromTLE constructs an orbital model from TLE lines.
func NewSGP4ModelFromTLE(line1, line2 string) *SGP4Model {
	return &SGP4Model{sat: satellite.TLEToSat(line1, line2, satellite.GravityWGS72)}
}

// StateAt implements MotionModel.
func (m *SGP4Model) StateAt(simTime time.Time) (model.Vec3, model.Vec3) {
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	pos, vel := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	return model.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
		model.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z}
}

// NewMotionModel chooses a model for the craft: a TLE pair selects SGP4,
// anything else flies the Keplerian elements.
func NewMotionModel(elements KeplerianElements, tle1, tle2 string, epoch time.Time) MotionModel {
	if tle1 != "" && tle2 != "" {
		return NewSGP4ModelFromTLE(tle1, tle2)
	}
	return NewKeplerianModel(elements, epoch)
}
