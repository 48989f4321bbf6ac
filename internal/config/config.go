// Package config is the file-and-environment configuration surface for
// all three binaries. A YAML file overrides the defaults; a handful of
// operational knobs override the file from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/internal/relay"
	"github.com/signalsfoundry/deepspace-relay/internal/spacecraft"
)

// SimConfig tunes the spacecraft-sim tick loop.
type SimConfig struct {
	// Tick is the wall-clock step; Scale compresses simulation time.
	Tick  time.Duration `yaml:"tick"`
	Scale float64       `yaml:"scale"`
	// SendInterval is the simulation-time spacing between reports.
	SendInterval time.Duration `yaml:"send_interval"`
}

// Config carries every injectable knob of the system. Duration fields
// are YAML integers in nanoseconds.
type Config struct {
	NATSURL     string `yaml:"nats_url"`
	MetricsAddr string `yaml:"metrics_addr"`
	DBPath      string `yaml:"db_path"`
	// Seed fixes the random sources; 0 derives one from the clock.
	Seed int64 `yaml:"seed"`

	Server      relay.ServerConfig     `yaml:"server"`
	Power       core.PowerConfig       `yaml:"power"`
	Weather     core.WeatherConfig     `yaml:"weather"`
	Channel     core.ChannelConfig     `yaml:"channel"`
	Thresholds  core.Thresholds        `yaml:"thresholds"`
	Decision    core.DecisionConfig    `yaml:"decision"`
	Compressor  core.CompressorConfig  `yaml:"compressor"`
	Transmitter core.TransmitterConfig `yaml:"transmitter"`
	Pipeline    core.PipelineConfig    `yaml:"pipeline"`

	Sim        SimConfig           `yaml:"sim"`
	Spacecraft []spacecraft.Config `yaml:"spacecraft"`
}

// Default returns the stock configuration for every component.
func Default() Config {
	return Config{
		NATSURL:     "nats://127.0.0.1:4222",
		MetricsAddr: ":9090",
		DBPath:      "telemetry.db",
		Server:      relay.DefaultServerConfig(),
		Power:       core.DefaultPowerConfig(),
		Weather:     core.DefaultWeatherConfig(),
		Channel:     core.DefaultChannelConfig(),
		Thresholds:  core.DefaultThresholds(),
		Decision:    core.DefaultDecisionConfig(),
		Compressor:  core.DefaultCompressorConfig(),
		Transmitter: core.DefaultTransmitterConfig(),
		Pipeline:    core.DefaultPipelineConfig(),
		Sim: SimConfig{
			Tick:         time.Second,
			Scale:        1,
			SendInterval: 5 * time.Second,
		},
		Spacecraft: []spacecraft.Config{
			spacecraft.DefaultConfig("Voyager-1"),
		},
	}
}

// Load merges the YAML file at path (if non-empty) over the defaults,
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides operational knobs from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATSURL = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("RELAY_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("RELAY_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = seed
		}
	}
}
