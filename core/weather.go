package core

import (
	"sync"
	"time"
)

// WeatherLevel is the coarse space-weather activity level.
type WeatherLevel string

const (
	WeatherNormal WeatherLevel = "normal"
	WeatherActive WeatherLevel = "active"
	WeatherStorm  WeatherLevel = "storm"
)

// Impact is the communication impact of the current weather level.
// SolarInterference is the fraction fed into the channel's loss and noise
// terms; BlackoutProbability folds into the same single loss draw.
type Impact struct {
	SNRReductionDB      float64
	BlackoutProbability float64
	SolarInterference   float64
	RadiationAlert      bool
}

// WeatherConfig controls the stochastic weather model. Probabilities are
// per update draw; an update happens at most once per Interval.
type WeatherConfig struct {
	Interval     time.Duration `yaml:"interval"`
	StormProb    float64       `yaml:"storm_prob"`
	ActiveProb   float64       `yaml:"active_prob"`
	StormImpact  Impact        `yaml:"-"`
	ActiveImpact Impact        `yaml:"-"`
}

// DefaultWeatherConfig returns the stock weather behaviour: 5% storm, 15%
// active, re-drawn at most every 180 seconds.
func DefaultWeatherConfig() WeatherConfig {
	return WeatherConfig{
		Interval:   180 * time.Second,
		StormProb:  0.05,
		ActiveProb: 0.15,
		StormImpact: Impact{
			SNRReductionDB:      12,
			BlackoutProbability: 0.35,
			SolarInterference:   0.9,
			RadiationAlert:      true,
		},
		ActiveImpact: Impact{
			SNRReductionDB:      4,
			BlackoutProbability: 0.08,
			SolarInterference:   0.3,
		},
	}
}

// WeatherModel is the time-gated stochastic environmental state affecting
// channel quality. Safe for concurrent use.
type WeatherModel struct {
	mu sync.Mutex

	cfg        WeatherConfig
	level      WeatherLevel
	lastUpdate time.Time

	rng RandSource
	now func() time.Time
}

// NewWeatherModel starts in the normal state. A nil clock uses wall time.
func NewWeatherModel(cfg WeatherConfig, rng RandSource, now func() time.Time) *WeatherModel {
	if now == nil {
		now = time.Now
	}
	return &WeatherModel{
		cfg:        cfg,
		level:      WeatherNormal,
		lastUpdate: now(),
		rng:        rng,
		now:        now,
	}
}

// Update re-draws the activity level if at least the configured interval
// has elapsed since the previous draw; otherwise it is a no-op. It returns
// the (possibly unchanged) current level.
func (w *WeatherModel) Update() WeatherLevel {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.lastUpdate) < w.cfg.Interval {
		return w.level
	}
	w.lastUpdate = now

	switch draw := w.rng.Float64(); {
	case draw < w.cfg.StormProb:
		w.level = WeatherStorm
	case draw < w.cfg.StormProb+w.cfg.ActiveProb:
		w.level = WeatherActive
	default:
		w.level = WeatherNormal
	}
	return w.level
}

// Level returns the current activity level without re-drawing.
func (w *WeatherModel) Level() WeatherLevel {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.level
}

// CommunicationImpact is a pure lookup keyed by the current activity
// level. Normal weather has zero impact.
func (w *WeatherModel) CommunicationImpact() Impact {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.level {
	case WeatherStorm:
		return w.cfg.StormImpact
	case WeatherActive:
		return w.cfg.ActiveImpact
	default:
		return Impact{}
	}
}
