package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/model"
)

// ServerConfig tunes the inbound surface.
type ServerConfig struct {
	Subject    string `yaml:"subject"`
	QueueGroup string `yaml:"queue_group"`
	// RatePerSec / RateBurst bound inbound reports per spacecraft. The
	// deep-space link is bandwidth-constrained; a misbehaving source must
	// not starve the rest of the fleet.
	RatePerSec float64 `yaml:"rate_per_sec"`
	RateBurst  int     `yaml:"rate_burst"`
	// DedupSize is the capacity of the (spacecraft, sequence) cache that
	// suppresses link-level retransmits.
	DedupSize int `yaml:"dedup_size"`
}

// DefaultServerConfig returns the stock ingress policy.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Subject:    SubjectTelemetry,
		QueueGroup: QueueGroup,
		RatePerSec: 5,
		RateBurst:  10,
		DedupSize:  4096,
	}
}

// IngressMetrics counts pre-pipeline rejections.
type IngressMetrics interface {
	IngressReject(reason string)
}

type dedupKey struct {
	spacecraftID string
	sequence     uint64
}

// Server answers telemetry requests on a NATS queue subscription. The
// request path is Handle, which is transport-independent so it can be
// exercised without a broker.
type Server struct {
	cfg  ServerConfig
	pipe *core.RelayPipeline

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
	dedup    *lru.Cache[dedupKey, struct{}]

	log     logging.Logger
	metrics IngressMetrics

	sub *nats.Subscription
}

// NewServer wires a server around the pipeline. metrics may be nil.
func NewServer(cfg ServerConfig, pipe *core.RelayPipeline, log logging.Logger, metrics IngressMetrics) (*Server, error) {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = DefaultServerConfig().DedupSize
	}
	dedup, err := lru.New[dedupKey, struct{}](cfg.DedupSize)
	if err != nil {
		return nil, fmt.Errorf("init dedup cache: %w", err)
	}
	return &Server{
		cfg:      cfg,
		pipe:     pipe,
		limiters: make(map[string]*rate.Limiter),
		dedup:    dedup,
		log:      log,
		metrics:  metrics,
	}, nil
}

// Start subscribes on the configured subject as part of the queue group.
// Each request is answered inline; NATS runs callbacks per subscription
// on a single goroutine, and the pipeline carries its own locking, so no
// extra synchronization is needed here.
func (s *Server) Start(nc *nats.Conn) error {
	sub, err := nc.QueueSubscribe(s.cfg.Subject, s.cfg.QueueGroup, func(msg *nats.Msg) {
		resp := s.Handle(context.Background(), msg.Data)
		if err := msg.Respond(resp); err != nil {
			s.log.Warn(context.Background(), "reply failed", logging.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}
	s.sub = sub
	s.log.Info(context.Background(), "relay server listening",
		logging.String("subject", s.cfg.Subject),
		logging.String("queue_group", s.cfg.QueueGroup),
	)
	return nil
}

// Close drains the subscription so in-flight requests finish.
func (s *Server) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

// Handle decodes one telemetry request, applies ingress policy, runs the
// pipeline, and encodes the reply envelope. It always returns a valid
// envelope, never an error: the source must hear back.
func (s *Server) Handle(ctx context.Context, data []byte) []byte {
	var report model.TelemetryReport
	if err := json.Unmarshal(data, &report); err != nil || report.SpacecraftID == "" {
		s.reject(ctx, "decode", "undecodable telemetry request")
		return encodeEnvelope(Envelope{Status: StatusRejected})
	}

	if !s.limiter(report.SpacecraftID).Allow() {
		s.reject(ctx, "rate_limited", "spacecraft over inbound rate limit",
			logging.String("spacecraft_id", report.SpacecraftID))
		return encodeEnvelope(Envelope{Status: StatusRateLimited})
	}

	// Link retransmits of an already seen sequence must not re-enter the
	// pipeline: they would double-count strikes and re-issue commands.
	key := dedupKey{spacecraftID: report.SpacecraftID, sequence: report.Sequence}
	if report.Sequence > 0 {
		if _, seen := s.dedup.Get(key); seen {
			s.reject(ctx, "duplicate", "duplicate sequence suppressed",
				logging.String("spacecraft_id", report.SpacecraftID),
				logging.Any("sequence", report.Sequence))
			return encodeEnvelope(Envelope{Status: StatusDuplicate})
		}
	}

	out, cmds, disp := s.pipe.Process(ctx, &report)
	if report.Sequence > 0 {
		s.dedup.Add(key, struct{}{})
	}

	return encodeEnvelope(Envelope{
		Status:   string(disp),
		Report:   out,
		Commands: cmds,
	})
}

func (s *Server) reject(ctx context.Context, reason, msg string, fields ...logging.Field) {
	s.log.Warn(ctx, msg, fields...)
	if s.metrics != nil {
		s.metrics.IngressReject(reason)
	}
}

// limiter returns the per-spacecraft token bucket, creating it on first
// contact. A non-positive rate disables limiting.
func (s *Server) limiter(spacecraftID string) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	lim, ok := s.limiters[spacecraftID]
	if !ok {
		r := rate.Limit(s.cfg.RatePerSec)
		if s.cfg.RatePerSec <= 0 {
			r = rate.Inf
		}
		burst := s.cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(r, burst)
		s.limiters[spacecraftID] = lim
	}
	return lim
}

func encodeEnvelope(env Envelope) []byte {
	data, err := json.Marshal(env)
	if err != nil {
		// Envelope fields are all marshalable; this cannot fail in practice.
		return []byte(`{"status":"rejected"}`)
	}
	return data
}
