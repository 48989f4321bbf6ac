package core

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/model"
)

// Channel is one downstream delivery path. Send forwards the report and
// returns the checksum the far end computed over what it received, which
// the transmitter compares against its own.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	// Send delivers one report and returns the echoed checksum.
	Send(ctx context.Context, r *model.TelemetryReport) (float64, error)
}

// ErrChecksumMismatch marks an attempt whose echoed checksum disagreed
// with the locally computed one.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// TransmitterConfig tunes retry behaviour.
type TransmitterConfig struct {
	// MaxAttempts is the retry budget against the primary channel.
	MaxAttempts int `yaml:"max_attempts"`
	// BackoffBase grows the inter-attempt pause as base^attempt.
	BackoffBase float64 `yaml:"backoff_base"`
	// BackoffUnit scales one backoff step; the simulation shrinks it below
	// a real second to stay interactive.
	BackoffUnit time.Duration `yaml:"backoff_unit"`
	// AttemptTimeout bounds a single channel call so an unreachable
	// endpoint cannot stall the pipeline indefinitely.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// DefaultTransmitterConfig returns the stock retry policy: three primary
// attempts with 1.5^attempt backoff, one backup attempt.
func DefaultTransmitterConfig() TransmitterConfig {
	return TransmitterConfig{
		MaxAttempts:    3,
		BackoffBase:    1.5,
		BackoffUnit:    100 * time.Millisecond,
		AttemptTimeout: 2 * time.Second,
	}
}

// TransmitterMetrics receives per-attempt outcomes. Implementations must
// be safe for concurrent use.
type TransmitterMetrics interface {
	TransmitAttempt(channel, result string)
}

// ReliableTransmitter delivers reports with checksum verification, retry
// with multiplicative backoff on the primary channel, and a single
// fallback attempt on the backup. Delivery failure is observability, not
// an error the pipeline propagates.
type ReliableTransmitter struct {
	cfg     TransmitterConfig
	primary Channel
	backup  Channel

	log     logging.Logger
	metrics TransmitterMetrics
	sleep   func(time.Duration)
}

// NewReliableTransmitter wires the delivery paths. backup and metrics may
// be nil; a nil sleep uses time.Sleep.
func NewReliableTransmitter(cfg TransmitterConfig, primary, backup Channel, log logging.Logger, metrics TransmitterMetrics, sleep func(time.Duration)) *ReliableTransmitter {
	if log == nil {
		log = logging.Noop()
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &ReliableTransmitter{
		cfg:     cfg,
		primary: primary,
		backup:  backup,
		log:     log,
		metrics: metrics,
		sleep:   sleep,
	}
}

// Checksum sums the seven core numeric fields of a report. NaN fields
// contribute zero. A cheap corruption detector, not cryptographic.
func Checksum(r *model.TelemetryReport) float64 {
	sum := 0.0
	for _, v := range []float64{
		r.Position.X, r.Position.Y, r.Position.Z,
		r.Velocity.X, r.Velocity.Y, r.Velocity.Z,
		r.Temperature,
	} {
		if math.IsNaN(v) {
			continue
		}
		sum += v
	}
	return sum
}

// Transmit annotates the report's checksum and attempts delivery: up to
// MaxAttempts against the primary with backoff between attempts, then one
// backup attempt. It returns true when some channel acknowledged with a
// matching checksum. The inter-attempt sleeps hold no locks.
func (t *ReliableTransmitter) Transmit(ctx context.Context, r *model.TelemetryReport) bool {
	r.Checksum = Checksum(r)

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		if t.send(ctx, t.primary, r) {
			return true
		}
		if attempt < t.cfg.MaxAttempts {
			t.sleep(t.backoff(attempt))
		}
		if ctx.Err() != nil {
			break
		}
	}

	if t.backup != nil && t.send(ctx, t.backup, r) {
		t.log.Warn(ctx, "delivered via backup channel",
			logging.String("spacecraft_id", r.SpacecraftID),
			logging.Any("sequence", r.Sequence),
		)
		return true
	}

	t.log.Error(ctx, "report dropped after exhausting channels",
		logging.String("spacecraft_id", r.SpacecraftID),
		logging.Any("sequence", r.Sequence),
	)
	return false
}

func (t *ReliableTransmitter) send(ctx context.Context, ch Channel, r *model.TelemetryReport) bool {
	if ch == nil {
		return false
	}
	attemptCtx := ctx
	if t.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, t.cfg.AttemptTimeout)
		defer cancel()
	}

	echoed, err := ch.Send(attemptCtx, r)
	if err == nil && echoed != r.Checksum {
		err = ErrChecksumMismatch
	}
	if err != nil {
		t.record(ch.Name(), "error")
		t.log.Warn(ctx, "transmit attempt failed",
			logging.String("channel", ch.Name()),
			logging.String("spacecraft_id", r.SpacecraftID),
			logging.String("error", err.Error()),
		)
		return false
	}
	t.record(ch.Name(), "ok")
	return true
}

func (t *ReliableTransmitter) record(channel, result string) {
	if t.metrics != nil {
		t.metrics.TransmitAttempt(channel, result)
	}
}

// backoff returns BackoffBase^attempt units.
func (t *ReliableTransmitter) backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(t.cfg.BackoffBase, float64(attempt)) * float64(t.cfg.BackoffUnit))
}
