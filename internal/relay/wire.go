// Package relay carries telemetry over NATS: an inbound request/reply
// server in front of the pipeline and downlink channels toward the
// ground segment. All payloads are JSON.
package relay

import "github.com/signalsfoundry/deepspace-relay/model"

// NATS subjects. The relay listens on SubjectTelemetry as a queue group
// so multiple relay instances share the inbound load; the ground
// receiver listens on both ground subjects.
const (
	SubjectTelemetry     = "relay.telemetry.v1"
	SubjectGroundPrimary = "ground.telemetry.primary"
	SubjectGroundBackup  = "ground.telemetry.backup"

	QueueGroup = "relay"
)

// Ingress rejection statuses. Anything else on an Envelope is the
// pipeline disposition verbatim.
const (
	StatusRejected    = "rejected"
	StatusRateLimited = "rate_limited"
	StatusDuplicate   = "duplicate"
)

// Envelope is the reply to every telemetry request. A source always gets
// a response: Status tells it what happened, Commands carries any
// autonomous instructions regardless of delivery outcome.
type Envelope struct {
	Status   string                 `json:"status"`
	Report   *model.TelemetryReport `json:"report,omitempty"`
	Commands []model.Command        `json:"commands,omitempty"`
}

// Ack is the ground receiver's reply on the downlink subjects. Checksum
// is recomputed over the received report; the transmitter compares it
// against its own to detect corruption.
type Ack struct {
	Status   string  `json:"status"`
	Checksum float64 `json:"checksum"`
}

// Ack statuses.
const (
	AckAccepted = "accepted"
	AckRejected = "rejected"
)
