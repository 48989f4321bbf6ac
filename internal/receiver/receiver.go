// Package receiver implements the ground segment: it answers downlink
// requests with a checksum acknowledgement and persists verified
// telemetry.
package receiver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/internal/relay"
	"github.com/signalsfoundry/deepspace-relay/model"
)

// Metrics receives receiver-side observations. May be nil everywhere.
type Metrics interface {
	ReportStored(channel string)
	ChecksumFailure()
	ObserveStore(d time.Duration)
	SetLastSequence(spacecraft string, seq uint64)
}

// Receiver verifies and stores inbound telemetry. The verification path
// is Handle, transport-independent for tests; Start wires it to the two
// ground subjects.
type Receiver struct {
	store   *Store
	log     logging.Logger
	metrics Metrics
	now     func() time.Time

	subs []*nats.Subscription
}

// NewReceiver wires the ground segment. store may be nil (verification
// only), as may metrics. A nil clock uses wall time.
func NewReceiver(store *Store, log logging.Logger, metrics Metrics, now func() time.Time) *Receiver {
	if log == nil {
		log = logging.Noop()
	}
	if now == nil {
		now = time.Now
	}
	return &Receiver{
		store:   store,
		log:     log,
		metrics: metrics,
		now:     now,
	}
}

// Start subscribes to the primary and backup ground subjects.
func (r *Receiver) Start(nc *nats.Conn) error {
	for _, s := range []struct {
		subject string
		channel string
	}{
		{relay.SubjectGroundPrimary, "primary"},
		{relay.SubjectGroundBackup, "backup"},
	} {
		channel := s.channel
		sub, err := nc.Subscribe(s.subject, func(msg *nats.Msg) {
			resp := r.Handle(context.Background(), channel, msg.Data)
			if err := msg.Respond(resp); err != nil {
				r.log.Warn(context.Background(), "ack reply failed", logging.String("error", err.Error()))
			}
		})
		if err != nil {
			return err
		}
		r.subs = append(r.subs, sub)
	}
	r.log.Info(context.Background(), "ground receiver listening",
		logging.String("primary", relay.SubjectGroundPrimary),
		logging.String("backup", relay.SubjectGroundBackup),
	)
	return nil
}

// Close drains the subscriptions.
func (r *Receiver) Close() error {
	var firstErr error
	for _, sub := range r.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Handle verifies one downlinked report and returns the acknowledgement.
// The ack always carries the locally recomputed checksum; on a mismatch
// the status is rejected and nothing is stored, which the transmitter
// counts as a failed attempt.
func (r *Receiver) Handle(ctx context.Context, channel string, data []byte) []byte {
	var report model.TelemetryReport
	if err := json.Unmarshal(data, &report); err != nil {
		r.log.Warn(ctx, "undecodable downlink payload", logging.String("error", err.Error()))
		return encodeAck(relay.Ack{Status: relay.AckRejected})
	}

	checksum := core.Checksum(&report)
	if checksum != report.Checksum {
		r.log.Warn(ctx, "checksum mismatch on downlink",
			logging.String("spacecraft_id", report.SpacecraftID),
			logging.Any("sequence", report.Sequence),
			logging.Any("carried", report.Checksum),
			logging.Any("recomputed", checksum),
		)
		if r.metrics != nil {
			r.metrics.ChecksumFailure()
		}
		return encodeAck(relay.Ack{Status: relay.AckRejected, Checksum: checksum})
	}

	r.persist(ctx, channel, &report)

	r.log.Info(ctx, "telemetry received",
		logging.String("spacecraft_id", report.SpacecraftID),
		logging.Any("sequence", report.Sequence),
		logging.String("channel", channel),
	)
	if r.metrics != nil {
		r.metrics.SetLastSequence(report.SpacecraftID, report.Sequence)
	}
	return encodeAck(relay.Ack{Status: relay.AckAccepted, Checksum: checksum})
}

// persist stores the verified report best-effort: a storage error is
// logged but never withholds the acknowledgement.
func (r *Receiver) persist(ctx context.Context, channel string, report *model.TelemetryReport) {
	if r.store == nil {
		return
	}
	start := r.now()
	if err := r.store.Save(ctx, channel, start, report); err != nil {
		r.log.Error(ctx, "persist failed",
			logging.String("spacecraft_id", report.SpacecraftID),
			logging.String("error", err.Error()),
		)
		return
	}
	if r.metrics != nil {
		r.metrics.ReportStored(channel)
		r.metrics.ObserveStore(r.now().Sub(start))
	}
}

func encodeAck(ack relay.Ack) []byte {
	data, err := json.Marshal(ack)
	if err != nil {
		return []byte(`{"status":"rejected"}`)
	}
	return data
}
