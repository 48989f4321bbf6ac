package core

import (
	"testing"
	"time"
)

func TestWeatherUpdateGatedByInterval(t *testing.T) {
	clock := newFakeClock()
	rng := &stubRand{floats: []float64{0.01}} // would storm if drawn
	w := NewWeatherModel(DefaultWeatherConfig(), rng, clock.Now)

	// Repeated calls inside the interval never draw.
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		if level := w.Update(); level != WeatherNormal {
			t.Fatalf("update %d: drew a new level %q inside the interval", i, level)
		}
	}
	if rng.fi != 0 {
		t.Fatalf("expected no random draws inside the interval, got %d", rng.fi)
	}

	clock.Advance(180 * time.Second)
	if level := w.Update(); level != WeatherStorm {
		t.Fatalf("expected storm after interval elapsed, got %q", level)
	}
}

func TestWeatherLevelPartition(t *testing.T) {
	cases := []struct {
		draw float64
		want WeatherLevel
	}{
		{0.01, WeatherStorm},
		{0.049, WeatherStorm},
		{0.05, WeatherActive},
		{0.19, WeatherActive},
		{0.20, WeatherNormal},
		{0.99, WeatherNormal},
	}
	for _, tc := range cases {
		clock := newFakeClock()
		w := NewWeatherModel(DefaultWeatherConfig(), &stubRand{floats: []float64{tc.draw}}, clock.Now)
		clock.Advance(200 * time.Second)
		if got := w.Update(); got != tc.want {
			t.Errorf("draw %v: got %q, want %q", tc.draw, got, tc.want)
		}
	}
}

func TestCommunicationImpactLookup(t *testing.T) {
	cfg := DefaultWeatherConfig()
	clock := newFakeClock()

	w := NewWeatherModel(cfg, &stubRand{floats: []float64{0.01}}, clock.Now)
	if imp := w.CommunicationImpact(); imp != (Impact{}) {
		t.Fatalf("normal weather should have zero impact, got %+v", imp)
	}

	clock.Advance(cfg.Interval)
	w.Update()
	imp := w.CommunicationImpact()
	if !imp.RadiationAlert {
		t.Fatal("storm impact should raise the radiation alert")
	}
	if imp.SNRReductionDB != cfg.StormImpact.SNRReductionDB {
		t.Fatalf("storm SNR reduction: got %v, want %v", imp.SNRReductionDB, cfg.StormImpact.SNRReductionDB)
	}
}
