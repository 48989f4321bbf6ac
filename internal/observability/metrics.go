package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// weatherLevels enumerates the space-weather gauge states. The gauge is
// one-hot: the current level reads 1, the others 0.
var weatherLevels = []string{"normal", "active", "storm"}

// RelayCollector bundles Prometheus metrics for the relay pipeline and
// its ingress surface. It satisfies the pipeline's and transmitter's
// metrics interfaces so core stays free of Prometheus imports.
type RelayCollector struct {
	gatherer prometheus.Gatherer

	ReportsTotal     *prometheus.CounterVec
	ProcessDuration  prometheus.Histogram
	CommandsTotal    *prometheus.CounterVec
	TransmitAttempts *prometheus.CounterVec
	IngressRejects   *prometheus.CounterVec

	PowerCapacity prometheus.Gauge
	WeatherLevel  *prometheus.GaugeVec
}

// NewRelayCollector registers relay Prometheus metrics against the
// provided registerer, defaulting to the global registry when nil.
func NewRelayCollector(reg prometheus.Registerer) (*RelayCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_reports_total",
		Help: "Total processed telemetry reports, labeled by disposition.",
	}, []string{"disposition"})
	reports, err := registerCounterVec(reg, reports, "relay_reports_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_process_duration_seconds",
		Help:    "End-to-end pipeline latency per report in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	duration, err = registerHistogram(reg, duration, "relay_process_duration_seconds")
	if err != nil {
		return nil, err
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_commands_total",
		Help: "Total autonomous commands issued, labeled by command type.",
	}, []string{"type"})
	commands, err = registerCounterVec(reg, commands, "relay_commands_total")
	if err != nil {
		return nil, err
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_transmit_attempts_total",
		Help: "Delivery attempts per downstream channel, labeled by result.",
	}, []string{"channel", "result"})
	attempts, err = registerCounterVec(reg, attempts, "relay_transmit_attempts_total")
	if err != nil {
		return nil, err
	}

	rejects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_ingress_rejects_total",
		Help: "Inbound reports rejected before the pipeline, labeled by reason.",
	}, []string{"reason"})
	rejects, err = registerCounterVec(reg, rejects, "relay_ingress_rejects_total")
	if err != nil {
		return nil, err
	}

	power, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_power_capacity_wh",
		Help: "Current relay power budget capacity in watt-hours.",
	}), "relay_power_capacity_wh")
	if err != nil {
		return nil, err
	}

	weather := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_weather_level",
		Help: "Current space weather level as a one-hot gauge.",
	}, []string{"level"})
	weather, err = registerGaugeVec(reg, weather, "relay_weather_level")
	if err != nil {
		return nil, err
	}

	return &RelayCollector{
		gatherer:         gatherer,
		ReportsTotal:     reports,
		ProcessDuration:  duration,
		CommandsTotal:    commands,
		TransmitAttempts: attempts,
		IngressRejects:   rejects,
		PowerCapacity:    power,
		WeatherLevel:     weather,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RelayCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveReport records one pipeline run's disposition and latency.
func (c *RelayCollector) ObserveReport(disposition string, seconds float64) {
	if c == nil {
		return
	}
	if c.ReportsTotal != nil {
		c.ReportsTotal.WithLabelValues(disposition).Inc()
	}
	if c.ProcessDuration != nil {
		c.ProcessDuration.Observe(seconds)
	}
}

// CommandIssued counts one autonomous command by type.
func (c *RelayCollector) CommandIssued(commandType string) {
	if c == nil || c.CommandsTotal == nil {
		return
	}
	c.CommandsTotal.WithLabelValues(commandType).Inc()
}

// TransmitAttempt counts one delivery attempt outcome per channel.
func (c *RelayCollector) TransmitAttempt(channel, result string) {
	if c == nil || c.TransmitAttempts == nil {
		return
	}
	c.TransmitAttempts.WithLabelValues(channel, result).Inc()
}

// IngressReject counts one pre-pipeline rejection by reason.
func (c *RelayCollector) IngressReject(reason string) {
	if c == nil || c.IngressRejects == nil {
		return
	}
	c.IngressRejects.WithLabelValues(reason).Inc()
}

// SetPowerCapacity updates the power budget gauge.
func (c *RelayCollector) SetPowerCapacity(wh float64) {
	if c == nil || c.PowerCapacity == nil {
		return
	}
	c.PowerCapacity.Set(wh)
}

// SetWeatherLevel flips the one-hot weather gauge to the given level.
func (c *RelayCollector) SetWeatherLevel(level string) {
	if c == nil || c.WeatherLevel == nil {
		return
	}
	for _, l := range weatherLevels {
		v := 0.0
		if l == level {
			v = 1
		}
		c.WeatherLevel.WithLabelValues(l).Set(v)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
