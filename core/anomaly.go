package core

import (
	"fmt"

	"github.com/signalsfoundry/deepspace-relay/model"
)

// Thresholds holds the anomaly detection limits. The stock values mirror
// the mission's operational envelope; they are configuration, not physics.
type Thresholds struct {
	TempCriticalLowC  float64 `yaml:"temp_critical_low_c"`
	TempWarningLowC   float64 `yaml:"temp_warning_low_c"`
	TempWarningHighC  float64 `yaml:"temp_warning_high_c"`
	TempCriticalHighC float64 `yaml:"temp_critical_high_c"`
	SpeedCriticalKmS  float64 `yaml:"speed_critical_km_s"`
	MaxRangeAU        float64 `yaml:"max_range_au"`
	RadiationWarning  float64 `yaml:"radiation_warning"`
	RadiationCritical float64 `yaml:"radiation_critical"`
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempCriticalLowC:  -100,
		TempWarningLowC:   -80,
		TempWarningHighC:  50,
		TempCriticalHighC: 80,
		SpeedCriticalKmS:  50,
		MaxRangeAU:        5,
		RadiationWarning:  500,
		RadiationCritical: 1000,
	}
}

// AnomalyDetector scans a telemetry snapshot against fixed thresholds.
// It is stateless and deterministic: identical input always yields
// identical findings. Each category contributes at most one finding, the
// most severe check per category winning.
type AnomalyDetector struct {
	limits Thresholds
}

// NewAnomalyDetector builds a detector with the given limits.
func NewAnomalyDetector(limits Thresholds) *AnomalyDetector {
	return &AnomalyDetector{limits: limits}
}

// Detect returns the ordered findings for one report. Order is fixed:
// temperature, velocity, position, radiation.
func (a *AnomalyDetector) Detect(r *model.TelemetryReport) []model.AnomalyFinding {
	var findings []model.AnomalyFinding

	if f, ok := a.checkTemperature(r.Temperature); ok {
		findings = append(findings, f)
	}
	if speed := r.Velocity.Norm(); speed > a.limits.SpeedCriticalKmS {
		findings = append(findings, model.AnomalyFinding{
			Severity:    model.SeverityCritical,
			Category:    model.CategoryVelocity,
			Description: fmt.Sprintf("velocity critical: %.1f km/s exceeds %.1f km/s", speed, a.limits.SpeedCriticalKmS),
		})
	}
	if rangeAU := r.Position.Norm() / AUKm; rangeAU > a.limits.MaxRangeAU {
		findings = append(findings, model.AnomalyFinding{
			Severity:    model.SeverityWarning,
			Category:    model.CategoryPosition,
			Description: fmt.Sprintf("position warning: %.2f AU beyond operational range of %.2f AU", rangeAU, a.limits.MaxRangeAU),
		})
	}
	if f, ok := a.checkRadiation(r.Radiation()); ok {
		findings = append(findings, f)
	}

	return findings
}

// checkTemperature evaluates the most severe matching band first so each
// report yields at most one temperature finding.
func (a *AnomalyDetector) checkTemperature(tempC float64) (model.AnomalyFinding, bool) {
	switch {
	case tempC < a.limits.TempCriticalLowC:
		return tempFinding(model.SeverityCritical, "critically low", tempC), true
	case tempC > a.limits.TempCriticalHighC:
		return tempFinding(model.SeverityCritical, "critically high", tempC), true
	case tempC > a.limits.TempWarningHighC:
		return tempFinding(model.SeverityWarning, "high", tempC), true
	case tempC < a.limits.TempWarningLowC:
		return tempFinding(model.SeverityWarning, "low", tempC), true
	}
	return model.AnomalyFinding{}, false
}

func (a *AnomalyDetector) checkRadiation(level float64) (model.AnomalyFinding, bool) {
	switch {
	case a.limits.RadiationCritical > 0 && level > a.limits.RadiationCritical:
		return model.AnomalyFinding{
			Severity:    model.SeverityCritical,
			Category:    model.CategoryRadiation,
			Description: fmt.Sprintf("radiation critical: %.0f exceeds %.0f", level, a.limits.RadiationCritical),
		}, true
	case a.limits.RadiationWarning > 0 && level > a.limits.RadiationWarning:
		return model.AnomalyFinding{
			Severity:    model.SeverityWarning,
			Category:    model.CategoryRadiation,
			Description: fmt.Sprintf("radiation warning: %.0f exceeds %.0f", level, a.limits.RadiationWarning),
		}, true
	}
	return model.AnomalyFinding{}, false
}

func tempFinding(sev model.Severity, label string, tempC float64) model.AnomalyFinding {
	return model.AnomalyFinding{
		Severity:    sev,
		Category:    model.CategoryTemperature,
		Description: fmt.Sprintf("temperature %s: %.1f°C", label, tempC),
	}
}
