package model

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparison; higher is more severe.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	}
	return 0
}

// MoreSevere reports whether s outranks other.
func (s Severity) MoreSevere(other Severity) bool {
	return s.rank() > other.rank()
}

// AnomalyCategory names the telemetry dimension a finding belongs to.
type AnomalyCategory string

const (
	CategoryTemperature AnomalyCategory = "temperature"
	CategoryVelocity    AnomalyCategory = "velocity"
	CategoryPosition    AnomalyCategory = "position"
	CategoryRadiation   AnomalyCategory = "radiation"
)

// AnomalyFinding is one detected anomaly. A report may carry zero or more
// findings, at most one per category.
type AnomalyFinding struct {
	Severity    Severity        `json:"severity"`
	Description string          `json:"description"`
	Category    AnomalyCategory `json:"category"`
}

// OverallSeverity returns the most severe severity present in findings, or
// SeverityNone for an empty slice.
func OverallSeverity(findings []AnomalyFinding) Severity {
	overall := SeverityNone
	for _, f := range findings {
		if f.Severity.MoreSevere(overall) {
			overall = f.Severity
		}
	}
	return overall
}
