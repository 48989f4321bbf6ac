package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsComplete(t *testing.T) {
	cfg := Default()

	if cfg.NATSURL == "" || cfg.MetricsAddr == "" {
		t.Fatal("defaults must include operational endpoints")
	}
	if cfg.Power.MaxCapacityWh != 1000 {
		t.Errorf("power capacity = %v, want 1000", cfg.Power.MaxCapacityWh)
	}
	if cfg.Transmitter.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Transmitter.MaxAttempts)
	}
	if len(cfg.Spacecraft) == 0 {
		t.Fatal("defaults must include at least one craft")
	}
	if cfg.Spacecraft[0].BatteryCapacityWh != 1000 {
		t.Errorf("craft battery = %v, want 1000", cfg.Spacecraft[0].BatteryCapacityWh)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	body := []byte(`
nats_url: nats://broker:4222
channel:
  distance_au: 5.2
  time_scale: 0.001
  base_loss_prob: 0.01
  distance_loss_prob: 0.10
  distance_loss_cap_au: 50
  base_noise_fraction: 0.01
  link_rate_bps: 32000
power:
  max_capacity_wh: 2000
  generation_w: 85
  reserve_fraction: 0.10
  rates_w:
    idle: 10
    telemetry_collection: 35
    data_transmission: 60
  initial_mode: idle
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NATSURL != "nats://broker:4222" {
		t.Errorf("nats_url = %q", cfg.NATSURL)
	}
	if cfg.Channel.DistanceAU != 5.2 {
		t.Errorf("distance_au = %v, want 5.2", cfg.Channel.DistanceAU)
	}
	if cfg.Power.MaxCapacityWh != 2000 {
		t.Errorf("max_capacity_wh = %v, want 2000", cfg.Power.MaxCapacityWh)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Transmitter.MaxAttempts != 3 {
		t.Errorf("transmitter defaults lost: %+v", cfg.Transmitter)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("NATS_URL", "nats://env:4222")
	t.Setenv("RELAY_SEED", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NATSURL != "nats://env:4222" {
		t.Errorf("nats_url = %q, want env override", cfg.NATSURL)
	}
	if cfg.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.Seed)
	}
}
