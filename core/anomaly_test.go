package core

import (
	"reflect"
	"testing"

	"github.com/signalsfoundry/deepspace-relay/model"
)

func testReport(temp float64) *model.TelemetryReport {
	r := &model.TelemetryReport{
		SpacecraftID: "Voyager-1",
		Temperature:  temp,
		Position:     model.Vec3{X: 1000, Y: 0, Z: 0},
		Velocity:     model.Vec3{X: 5, Y: 0, Z: 0},
	}
	r.Normalize()
	return r
}

func findCategory(findings []model.AnomalyFinding, cat model.AnomalyCategory) (model.AnomalyFinding, bool) {
	for _, f := range findings {
		if f.Category == cat {
			return f, true
		}
	}
	return model.AnomalyFinding{}, false
}

func TestTemperatureBands(t *testing.T) {
	det := NewAnomalyDetector(DefaultThresholds())

	cases := []struct {
		temp float64
		want model.Severity // SeverityNone means no finding
	}{
		{-120, model.SeverityCritical},
		{-90, model.SeverityWarning},
		{-50, model.SeverityNone},
		{0, model.SeverityNone},
		{45, model.SeverityNone},
		{60, model.SeverityWarning},
		{90, model.SeverityCritical},
	}
	for _, tc := range cases {
		findings := det.Detect(testReport(tc.temp))
		f, found := findCategory(findings, model.CategoryTemperature)
		if tc.want == model.SeverityNone {
			if found {
				t.Errorf("temp %v: unexpected finding %+v", tc.temp, f)
			}
			continue
		}
		if !found {
			t.Errorf("temp %v: expected a %s finding", tc.temp, tc.want)
			continue
		}
		if f.Severity != tc.want {
			t.Errorf("temp %v: got severity %q, want %q", tc.temp, f.Severity, tc.want)
		}
	}
}

func TestOneFindingPerCategory(t *testing.T) {
	det := NewAnomalyDetector(DefaultThresholds())

	// -120 trips both the critical-low and warning-low bands; only the
	// most severe survives.
	findings := det.Detect(testReport(-120))
	count := 0
	for _, f := range findings {
		if f.Category == model.CategoryTemperature {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one temperature finding, got %d", count)
	}
}

func TestCriticalTemperatureAndVelocity(t *testing.T) {
	det := NewAnomalyDetector(DefaultThresholds())

	r := testReport(90)
	r.Velocity = model.Vec3{X: 60, Y: 0, Z: 0}
	findings := det.Detect(r)

	temp, ok := findCategory(findings, model.CategoryTemperature)
	if !ok || temp.Severity != model.SeverityCritical {
		t.Fatalf("expected critical temperature finding, got %+v", findings)
	}
	vel, ok := findCategory(findings, model.CategoryVelocity)
	if !ok || vel.Severity != model.SeverityCritical {
		t.Fatalf("expected critical velocity finding, got %+v", findings)
	}
	if model.OverallSeverity(findings) != model.SeverityCritical {
		t.Fatalf("overall severity should be critical")
	}
}

func TestPositionBeyondOperationalRange(t *testing.T) {
	det := NewAnomalyDetector(DefaultThresholds())

	r := testReport(0)
	r.Position = model.Vec3{X: 6 * AUKm, Y: 0, Z: 0}
	findings := det.Detect(r)
	f, ok := findCategory(findings, model.CategoryPosition)
	if !ok {
		t.Fatal("expected a position finding beyond 5 AU")
	}
	if f.Severity != model.SeverityWarning {
		t.Fatalf("position finding severity: got %q, want warning", f.Severity)
	}
}

func TestRadiationThresholds(t *testing.T) {
	det := NewAnomalyDetector(DefaultThresholds())

	r := testReport(0)
	high := 1500.0
	r.RadiationLevel = &high
	findings := det.Detect(r)
	f, ok := findCategory(findings, model.CategoryRadiation)
	if !ok || f.Severity != model.SeverityCritical {
		t.Fatalf("expected critical radiation finding, got %+v", findings)
	}
}

func TestDetectDeterministic(t *testing.T) {
	det := NewAnomalyDetector(DefaultThresholds())
	r := testReport(90)
	r.Velocity = model.Vec3{X: 60, Y: 0, Z: 0}

	first := det.Detect(r)
	for i := 0; i < 10; i++ {
		if next := det.Detect(r); !reflect.DeepEqual(first, next) {
			t.Fatalf("detection not deterministic: %+v vs %+v", first, next)
		}
	}
}
