package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReceiverCollector exposes ground-receiver-specific Prometheus metrics.
type ReceiverCollector struct {
	gatherer prometheus.Gatherer

	ReportsStored    *prometheus.CounterVec
	ChecksumFailures prometheus.Counter
	StoreDuration    prometheus.Histogram
	LastSequence     *prometheus.GaugeVec
}

// NewReceiverCollector registers receiver metrics against the provided registerer.
func NewReceiverCollector(reg prometheus.Registerer) (*ReceiverCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	stored := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receiver_reports_stored_total",
		Help: "Telemetry reports persisted by the ground receiver, labeled by channel.",
	}, []string{"channel"})
	stored, err := registerCounterVec(reg, stored, "receiver_reports_stored_total")
	if err != nil {
		return nil, err
	}

	checksumFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receiver_checksum_failures_total",
		Help: "Inbound reports whose recomputed checksum disagreed with the carried one.",
	})
	checksumFailures, err = registerCounter(reg, checksumFailures, "receiver_checksum_failures_total")
	if err != nil {
		return nil, err
	}

	storeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "receiver_store_duration_seconds",
		Help:    "Duration of report persistence, acknowledgement excluded.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	storeDuration, err = registerHistogram(reg, storeDuration, "receiver_store_duration_seconds")
	if err != nil {
		return nil, err
	}

	lastSeq := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "receiver_last_sequence",
		Help: "Highest telemetry sequence number seen per spacecraft.",
	}, []string{"spacecraft"})
	lastSeq, err = registerGaugeVec(reg, lastSeq, "receiver_last_sequence")
	if err != nil {
		return nil, err
	}

	return &ReceiverCollector{
		gatherer:         gatherer,
		ReportsStored:    stored,
		ChecksumFailures: checksumFailures,
		StoreDuration:    storeDuration,
		LastSequence:     lastSeq,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ReceiverCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ReceiverCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ReportStored counts one persisted report for the given channel.
func (c *ReceiverCollector) ReportStored(channel string) {
	if c == nil || c.ReportsStored == nil {
		return
	}
	c.ReportsStored.WithLabelValues(channel).Inc()
}

// ChecksumFailure counts one checksum disagreement.
func (c *ReceiverCollector) ChecksumFailure() {
	if c == nil || c.ChecksumFailures == nil {
		return
	}
	c.ChecksumFailures.Inc()
}

// ObserveStore records one persistence duration measurement.
func (c *ReceiverCollector) ObserveStore(d time.Duration) {
	if c == nil || c.StoreDuration == nil {
		return
	}
	c.StoreDuration.Observe(d.Seconds())
}

// SetLastSequence updates the per-spacecraft high-water mark.
func (c *ReceiverCollector) SetLastSequence(spacecraft string, seq uint64) {
	if c == nil || c.LastSequence == nil {
		return
	}
	c.LastSequence.WithLabelValues(spacecraft).Set(float64(seq))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
