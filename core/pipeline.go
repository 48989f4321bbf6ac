package core

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/model"
)

// Disposition is the outcome of one pipeline run, carried on the wire
// envelope and into metrics. It is observability, not error propagation:
// Process always returns a report.
type Disposition string

const (
	// DispositionDelivered: processed and acknowledged downstream.
	DispositionDelivered Disposition = "delivered"
	// DispositionDeliveryFailed: processed but every channel failed;
	// report dropped after retries.
	DispositionDeliveryFailed Disposition = "delivery_failed"
	// DispositionDroppedPower: the collection gate denied admission.
	DispositionDroppedPower Disposition = "dropped_power"
	// DispositionDroppedChannel: simulated packet loss discarded the report.
	DispositionDroppedChannel Disposition = "dropped_channel"
	// DispositionQueued: processed but the transmission gate denied
	// admission; corrected-but-unsent.
	DispositionQueued Disposition = "queued"
)

// PipelineConfig carries the fixed per-stage parameters.
type PipelineConfig struct {
	// PreprocessOffsetKm is the simulated instrument correction applied
	// before anomaly detection.
	PreprocessOffsetKm model.Vec3 `yaml:"preprocess_offset_km"`
	// CarrierFrequencyHz drives the doppler-shift annotation. X-band.
	CarrierFrequencyHz float64 `yaml:"carrier_frequency_hz"`
	// CollectionSeconds / TransmissionSeconds are the durations quoted to
	// the power gates.
	CollectionSeconds   float64 `yaml:"collection_seconds"`
	TransmissionSeconds float64 `yaml:"transmission_seconds"`
	// FEC is the annotated forward-error-correction geometry.
	FEC model.FECParams `yaml:"fec"`
	// TrendWindow is how many recent cycles feed bandwidth-mode selection.
	TrendWindow int `yaml:"trend_window"`
}

// DefaultPipelineConfig returns the stock stage parameters. The FEC
// geometry matches a shortened Reed-Solomon (255,223) block.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PreprocessOffsetKm:  model.Vec3{X: 1, Y: 1, Z: 1},
		CarrierFrequencyHz:  8.4e9,
		CollectionSeconds:   5,
		TransmissionSeconds: 10,
		FEC: model.FECParams{
			DataBytes:        223,
			ParityBytes:      32,
			CorrectableBytes: 16,
		},
		TrendWindow: 10,
	}
}

// PipelineMetrics receives pipeline-level observations. Implementations
// must be safe for concurrent use.
type PipelineMetrics interface {
	ObserveReport(disposition string, seconds float64)
	CommandIssued(commandType string)
	SetPowerCapacity(wh float64)
	SetWeatherLevel(level string)
}

// RelayPipeline orchestrates the relay stage for each inbound report:
// power gating, pre-processing, anomaly detection, autonomous command
// generation, annotation, compression, channel simulation, and
// checksum-verified transmission.
//
// Process may be called concurrently; per-call state is local, shared
// state (power, weather, histories, trends) carries its own locking.
type RelayPipeline struct {
	cfg PipelineConfig

	power      *PowerBudget
	weather    *WeatherModel
	channel    *ChannelModel
	detector   *AnomalyDetector
	engine     *DecisionEngine
	compressor *AdaptiveCompressor
	tx         *ReliableTransmitter

	trendMu sync.Mutex
	trends  map[string][]model.Severity

	log     logging.Logger
	metrics PipelineMetrics
	now     func() time.Time
}

// PipelineDeps bundles the collaborating components; all are required
// except Metrics.
type PipelineDeps struct {
	Power      *PowerBudget
	Weather    *WeatherModel
	Channel    *ChannelModel
	Detector   *AnomalyDetector
	Engine     *DecisionEngine
	Compressor *AdaptiveCompressor
	Tx         *ReliableTransmitter
	Log        logging.Logger
	Metrics    PipelineMetrics
	Now        func() time.Time
}

// NewRelayPipeline wires the pipeline.
func NewRelayPipeline(cfg PipelineConfig, deps PipelineDeps) *RelayPipeline {
	if deps.Log == nil {
		deps.Log = logging.Noop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = DefaultPipelineConfig().TrendWindow
	}
	return &RelayPipeline{
		cfg:        cfg,
		power:      deps.Power,
		weather:    deps.Weather,
		channel:    deps.Channel,
		detector:   deps.Detector,
		engine:     deps.Engine,
		compressor: deps.Compressor,
		tx:         deps.Tx,
		trends:     make(map[string][]model.Severity),
		log:        deps.Log,
		metrics:    deps.Metrics,
		now:        deps.Now,
	}
}

// Process runs one report through the full relay stage and returns the
// outgoing report, any commands for the source, and the disposition. It
// never returns an error: a denied or dropped report yields a minimal
// stand-in so the caller always has a response to send.
func (p *RelayPipeline) Process(ctx context.Context, in *model.TelemetryReport) (*model.TelemetryReport, []model.Command, Disposition) {
	start := p.now()
	ctx, log := logging.WithRequestLogger(ctx, p.log)
	log = log.With(
		logging.String("spacecraft_id", in.SpacecraftID),
		logging.Any("sequence", in.Sequence),
	)

	report, cmds, disp := p.process(ctx, log, in)

	if p.metrics != nil {
		p.metrics.ObserveReport(string(disp), p.now().Sub(start).Seconds())
		for _, c := range cmds {
			p.metrics.CommandIssued(string(c.Type))
		}
		p.metrics.SetPowerCapacity(p.power.Update().CapacityWh)
		p.metrics.SetWeatherLevel(string(p.weather.Level()))
	}
	return report, cmds, disp
}

func (p *RelayPipeline) process(ctx context.Context, log logging.Logger, in *model.TelemetryReport) (*model.TelemetryReport, []model.Command, Disposition) {
	// Collection gate. Denial is backpressure, not an error.
	if !p.power.CanPerform(PowerOpCollection, p.cfg.CollectionSeconds) {
		log.Warn(ctx, "collection gate denied; dropping report")
		return in.Minimal(), nil, DispositionDroppedPower
	}
	p.power.SetMode(PowerOpCollection)

	// Instrument correction on a copy; upstream fields stay untouched.
	report := in.Clone()
	report.Normalize()
	report.Position = report.Position.Add(p.cfg.PreprocessOffsetKm)

	findings := p.detector.Detect(report)
	cmds := p.engine.Decide(report, findings)

	report.AnomalyCount = len(findings)
	report.AnomalySeverity = model.OverallSeverity(findings)
	for _, f := range findings {
		report.AnomalyDescriptions = append(report.AnomalyDescriptions, f.Description)
	}

	report.DopplerShiftHz = p.dopplerShift(report)

	mode := p.bandwidthMode(report.SpacecraftID, report.AnomalySeverity)
	compressed, err := p.compressor.Compress(report, mode)
	if err != nil {
		// Compression is an annotation; its failure never blocks delivery.
		log.Error(ctx, "compression failed", logging.String("error", err.Error()))
	} else {
		report.Compressed = compressed
	}

	// Channel simulation, gated by the current weather.
	p.weather.Update()
	impact := p.weather.CommunicationImpact()
	if impact.RadiationAlert {
		log.Warn(ctx, "solar radiation alert in effect")
	}
	if p.channel.PacketLoss(impact) {
		log.Info(ctx, "simulated packet loss; report discarded")
		p.power.SetMode(PowerOpIdle)
		return in.Minimal(), cmds, DispositionDroppedChannel
	}
	report.Temperature = p.channel.ApplyNoise(report.Temperature, impact)
	if report.RadiationLevel != nil {
		noisy := p.channel.ApplyNoise(*report.RadiationLevel, impact)
		report.RadiationLevel = &noisy
	}

	fec := p.cfg.FEC
	report.FEC = &fec

	// Transmission gate. A denial means corrected-but-unsent.
	if !p.power.CanPerform(PowerOpTransmission, p.cfg.TransmissionSeconds) {
		log.Warn(ctx, "transmission gate denied; report queued for later")
		p.power.SetMode(PowerOpIdle)
		return report, cmds, DispositionQueued
	}

	p.power.SetMode(PowerOpTransmission)
	delivered := p.tx.Transmit(ctx, report)
	p.power.SetMode(PowerOpIdle)

	if !delivered {
		return report, cmds, DispositionDeliveryFailed
	}
	return report, cmds, DispositionDelivered
}

// dopplerShift computes the classical doppler shift of the carrier from
// the radial velocity component (positive shift for approaching craft).
func (p *RelayPipeline) dopplerShift(r *model.TelemetryReport) float64 {
	dist := r.Position.Norm()
	if dist == 0 {
		return 0
	}
	radial := r.Position.Dot(r.Velocity) / dist
	return -radial / SpeedOfLightKmS * p.cfg.CarrierFrequencyHz
}

// bandwidthMode folds the current overall severity into the craft's
// rolling trend window and derives the link tier: any critical in the
// window pins the link to essentials, warnings degrade it one step, and a
// full window of clean cycles earns the high tier.
func (p *RelayPipeline) bandwidthMode(spacecraftID string, severity model.Severity) BandwidthMode {
	p.trendMu.Lock()
	defer p.trendMu.Unlock()

	trend := append(p.trends[spacecraftID], severity)
	if len(trend) > p.cfg.TrendWindow {
		trend = trend[1:]
	}
	p.trends[spacecraftID] = trend

	sawWarning := false
	for _, s := range trend {
		switch s {
		case model.SeverityCritical:
			return BandwidthCritical
		case model.SeverityWarning:
			sawWarning = true
		}
	}
	if sawWarning {
		return BandwidthLow
	}
	if len(trend) == p.cfg.TrendWindow {
		return BandwidthHigh
	}
	return BandwidthNormal
}
