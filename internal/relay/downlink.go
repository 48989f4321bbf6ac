package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/model"
)

// Requester is the slice of *nats.Conn the downlink needs.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Downlink carries reports from the relay to a ground subject over NATS
// request/reply, simulating the physical link first: it sleeps the
// light-time propagation delay plus serialization time before the
// request goes out. It implements core.Channel.
type Downlink struct {
	name    string
	subject string
	nc      Requester
	channel *core.ChannelModel
	log     logging.Logger
	sleep   func(time.Duration)
}

// NewDownlink builds a channel toward one ground subject. A nil sleep
// uses time.Sleep.
func NewDownlink(name, subject string, nc Requester, channel *core.ChannelModel, log logging.Logger, sleep func(time.Duration)) *Downlink {
	if log == nil {
		log = logging.Noop()
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Downlink{
		name:    name,
		subject: subject,
		nc:      nc,
		channel: channel,
		log:     log,
		sleep:   sleep,
	}
}

// Name implements core.Channel.
func (d *Downlink) Name() string { return d.name }

// Send implements core.Channel. It returns the ground receiver's echoed
// checksum; the caller decides whether it matches.
func (d *Downlink) Send(ctx context.Context, r *model.TelemetryReport) (float64, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}

	wait := d.channel.Delay() + d.channel.TransmitTime(len(payload), d.channel.LinkRateBps())
	d.sleep(wait)
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	msg, err := d.nc.RequestWithContext(ctx, d.subject, payload)
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", d.subject, err)
	}

	var ack Ack
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		return 0, fmt.Errorf("decode ack: %w", err)
	}
	d.log.Debug(ctx, "downlink acknowledged",
		logging.String("channel", d.name),
		logging.String("status", ack.Status),
	)
	return ack.Checksum, nil
}
