package core

import (
	"math"
	"time"
)

// Physical constants shared across the simulation.
const (
	// AUKm is one astronomical unit in kilometres.
	AUKm = 149597870.7
	// SpeedOfLightKmS is the speed of light in km/s.
	SpeedOfLightKmS = 299792.458
)

// ChannelConfig describes the simulated deep-space link.
type ChannelConfig struct {
	// DistanceAU is the one-way relay-to-ground distance.
	DistanceAU float64 `yaml:"distance_au"`
	// TimeScale compresses real propagation and serialization times so the
	// simulation stays interactive; 1.0 would be physically exact.
	TimeScale float64 `yaml:"time_scale"`
	// BaseLossProb is the loss probability on a quiet, short link.
	BaseLossProb float64 `yaml:"base_loss_prob"`
	// DistanceLossProb is the additional loss probability reached at
	// DistanceLossCapAU; closer links contribute proportionally less.
	DistanceLossProb  float64 `yaml:"distance_loss_prob"`
	DistanceLossCapAU float64 `yaml:"distance_loss_cap_au"`
	// BaseNoiseFraction is the measurement-noise standard deviation as a
	// fraction of the value's magnitude on a quiet baseline link.
	BaseNoiseFraction float64 `yaml:"base_noise_fraction"`
	// LinkRateBps is the downlink serialization rate.
	LinkRateBps float64 `yaml:"link_rate_bps"`
}

// DefaultChannelConfig places the relay 1.5 AU out with sub-second scaled
// timing.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		DistanceAU:        1.5,
		TimeScale:         0.001,
		BaseLossProb:      0.01,
		DistanceLossProb:  0.10,
		DistanceLossCapAU: 50,
		BaseNoiseFraction: 0.01,
		LinkRateBps:       32_000,
	}
}

// ChannelModel derives delay, packet loss, measurement noise, and
// transmission time from the configured distance and the current weather
// impact. Every method is deterministic given the injected random source;
// none of them fail.
type ChannelModel struct {
	cfg ChannelConfig
	rng RandSource
}

// NewChannelModel builds a channel for the configured distance.
func NewChannelModel(cfg ChannelConfig, rng RandSource) *ChannelModel {
	return &ChannelModel{cfg: cfg, rng: rng}
}

// DistanceAU returns the configured one-way distance.
func (c *ChannelModel) DistanceAU() float64 { return c.cfg.DistanceAU }

// LinkRateBps returns the configured downlink serialization rate.
func (c *ChannelModel) LinkRateBps() float64 { return c.cfg.LinkRateBps }

// Delay returns the scaled one-way propagation delay.
func (c *ChannelModel) Delay() time.Duration {
	seconds := c.cfg.DistanceAU * AUKm / SpeedOfLightKmS * c.cfg.TimeScale
	return time.Duration(seconds * float64(time.Second))
}

// PacketLoss performs the single Bernoulli loss draw for one report:
// base loss, plus a distance-scaled term capped at DistanceLossCapAU,
// plus 20% of the solar-interference fraction and the weather blackout
// probability. Callers treat true as "drop silently, do not forward".
func (c *ChannelModel) PacketLoss(imp Impact) bool {
	p := c.lossProbability(imp)
	return c.rng.Float64() < p
}

func (c *ChannelModel) lossProbability(imp Impact) float64 {
	d := math.Min(c.cfg.DistanceAU, c.cfg.DistanceLossCapAU)
	p := c.cfg.BaseLossProb
	if c.cfg.DistanceLossCapAU > 0 {
		p += c.cfg.DistanceLossProb * d / c.cfg.DistanceLossCapAU
	}
	p += 0.20*imp.SolarInterference + imp.BlackoutProbability
	if p > 1 {
		p = 1
	}
	return p
}

// ApplyNoise adds zero-mean Gaussian noise to a measured value. The
// standard deviation is roughly BaseNoiseFraction of the magnitude on a
// quiet link and grows with distance and solar interference. Non-finite
// inputs pass through unchanged.
func (c *ChannelModel) ApplyNoise(value float64, imp Impact) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	d := math.Min(c.cfg.DistanceAU, c.cfg.DistanceLossCapAU)
	frac := c.cfg.BaseNoiseFraction
	if c.cfg.DistanceLossCapAU > 0 {
		frac += 0.005 * d / c.cfg.DistanceLossCapAU
	}
	frac += 0.04 * imp.SolarInterference
	frac *= 1 + imp.SNRReductionDB/30.0
	return value + c.rng.NormFloat64()*math.Abs(value)*frac
}

// TransmitTime returns the scaled serialization time for sizeBytes at the
// given link rate.
func (c *ChannelModel) TransmitTime(sizeBytes int, bps float64) time.Duration {
	if bps <= 0 || sizeBytes <= 0 {
		return 0
	}
	seconds := float64(sizeBytes) * 8 / bps * c.cfg.TimeScale
	return time.Duration(seconds * float64(time.Second))
}
