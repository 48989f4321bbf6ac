package tests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/internal/receiver"
	"github.com/signalsfoundry/deepspace-relay/internal/relay"
	"github.com/signalsfoundry/deepspace-relay/internal/spacecraft"
	"github.com/signalsfoundry/deepspace-relay/model"
)

// steadyRand keeps the simulation quiet: no orbital anomalies, calm
// weather, a lossless channel, and flat sensor walks.
type steadyRand struct{}

func (steadyRand) Float64() float64     { return 0.9 }
func (steadyRand) NormFloat64() float64 { return 0 }

// groundChannel delivers downlinked reports straight into a Receiver,
// standing in for the NATS leg between transmitter and ground segment.
type groundChannel struct {
	name    string
	rcv     *receiver.Receiver
	corrupt bool
	calls   int
}

func (g *groundChannel) Name() string { return g.name }

func (g *groundChannel) Send(ctx context.Context, r *model.TelemetryReport) (float64, error) {
	g.calls++

	wire := *r
	if g.corrupt {
		wire.Temperature += 1000
	}
	data, err := json.Marshal(&wire)
	if err != nil {
		return 0, err
	}

	var ack relay.Ack
	if err := json.Unmarshal(g.rcv.Handle(ctx, g.name, data), &ack); err != nil {
		return 0, err
	}
	return ack.Checksum, nil
}

type relayEnv struct {
	srv     *relay.Server
	store   *receiver.Store
	primary *groundChannel
	backup  *groundChannel
}

func newRelayEnv(t *testing.T, corruptPrimary bool) *relayEnv {
	t.Helper()

	store, err := receiver.OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rcv := receiver.NewReceiver(store, nil, nil, nil)
	primary := &groundChannel{name: "primary", rcv: rcv, corrupt: corruptPrimary}
	backup := &groundChannel{name: "backup", rcv: rcv}

	rng := steadyRand{}
	compressor, err := core.NewAdaptiveCompressor(core.DefaultCompressorConfig())
	if err != nil {
		t.Fatalf("NewAdaptiveCompressor: %v", err)
	}
	pipe := core.NewRelayPipeline(core.DefaultPipelineConfig(), core.PipelineDeps{
		Power:      core.NewPowerBudget(core.DefaultPowerConfig(), nil),
		Weather:    core.NewWeatherModel(core.DefaultWeatherConfig(), rng, nil),
		Channel:    core.NewChannelModel(core.DefaultChannelConfig(), rng),
		Detector:   core.NewAnomalyDetector(core.DefaultThresholds()),
		Engine:     core.NewDecisionEngine(core.DefaultDecisionConfig(), rng, nil),
		Compressor: compressor,
		Tx:         core.NewReliableTransmitter(core.DefaultTransmitterConfig(), primary, backup, nil, nil, func(time.Duration) {}),
	})

	srv, err := relay.NewServer(relay.DefaultServerConfig(), pipe, nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &relayEnv{srv: srv, store: store, primary: primary, backup: backup}
}

func newQuietCraft(t *testing.T, epoch time.Time) *spacecraft.Spacecraft {
	t.Helper()

	cfg := spacecraft.DefaultConfig("Pioneer-11")
	cfg.Elements = spacecraft.KeplerianElements{
		SemiMajorAxisKm: 1.496e8,
		Eccentricity:    0,
		InclinationDeg:  0,
		TargetSpeedKmS:  5,
	}
	motion := spacecraft.NewMotionModel(cfg.Elements, "", "", epoch)
	return spacecraft.New(cfg, motion, steadyRand{}, nil)
}

func uplink(t *testing.T, env *relayEnv, report *model.TelemetryReport) relay.Envelope {
	t.Helper()

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	var resp relay.Envelope
	if err := json.Unmarshal(env.srv.Handle(context.Background(), data), &resp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp
}

func TestEndToEndTelemetryFlow(t *testing.T) {
	env := newRelayEnv(t, false)
	epoch := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	craft := newQuietCraft(t, epoch)
	ctx := context.Background()

	const cycles = 3
	for i := 0; i < cycles; i++ {
		simTime := epoch.Add(time.Duration(i) * 5 * time.Second)
		report := craft.GenerateReport(ctx, simTime)

		resp := uplink(t, env, report)
		if resp.Status != string(core.DispositionDelivered) {
			t.Fatalf("cycle %d: status = %q, want delivered", i, resp.Status)
		}
		for _, cmd := range resp.Commands {
			craft.Enqueue(ctx, cmd)
		}
	}

	n, err := env.store.Count(ctx, "Pioneer-11")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != cycles {
		t.Fatalf("stored reports = %d, want %d", n, cycles)
	}

	recent, err := env.store.Recent(ctx, "Pioneer-11", cycles)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != cycles {
		t.Fatalf("recent rows = %d, want %d", len(recent), cycles)
	}
	if recent[0].Sequence != cycles {
		t.Errorf("newest sequence = %d, want %d", recent[0].Sequence, cycles)
	}
	for _, rec := range recent {
		if rec.Channel != "primary" {
			t.Errorf("seq %d stored via %q, want primary", rec.Sequence, rec.Channel)
		}
		if rec.Report == nil || rec.Report.SpacecraftID != "Pioneer-11" {
			t.Errorf("seq %d payload not round-trippable: %+v", rec.Sequence, rec.Report)
		}
		if rec.Report != nil && core.Checksum(rec.Report) != rec.Checksum {
			t.Errorf("seq %d stored checksum disagrees with payload", rec.Sequence)
		}
	}
	if env.backup.calls != 0 {
		t.Errorf("backup channel used %d times on a clean link", env.backup.calls)
	}
}

func TestEndToEndFailoverOnCorruptedPrimary(t *testing.T) {
	env := newRelayEnv(t, true)
	epoch := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	craft := newQuietCraft(t, epoch)
	ctx := context.Background()

	report := craft.GenerateReport(ctx, epoch)
	resp := uplink(t, env, report)

	if resp.Status != string(core.DispositionDelivered) {
		t.Fatalf("status = %q, want delivered via backup", resp.Status)
	}
	if env.primary.calls != core.DefaultTransmitterConfig().MaxAttempts {
		t.Errorf("primary attempts = %d, want %d", env.primary.calls, core.DefaultTransmitterConfig().MaxAttempts)
	}
	if env.backup.calls != 1 {
		t.Errorf("backup attempts = %d, want 1", env.backup.calls)
	}

	// Corrupted primary attempts were rejected by the receiver, only
	// the backup delivery reached the store.
	n, err := env.store.Count(ctx, "Pioneer-11")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("stored reports = %d, want 1", n)
	}
	recent, err := env.store.Recent(ctx, "Pioneer-11", 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Channel != "backup" {
		t.Fatalf("stored rows = %+v, want one backup row", recent)
	}
}

func TestEndToEndDuplicateReplayIsSuppressed(t *testing.T) {
	env := newRelayEnv(t, false)
	epoch := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	craft := newQuietCraft(t, epoch)
	ctx := context.Background()

	report := craft.GenerateReport(ctx, epoch)
	if resp := uplink(t, env, report); resp.Status != string(core.DispositionDelivered) {
		t.Fatalf("first status = %q, want delivered", resp.Status)
	}
	if resp := uplink(t, env, report); resp.Status != relay.StatusDuplicate {
		t.Fatalf("replay status = %q, want duplicate", resp.Status)
	}

	n, err := env.store.Count(ctx, "Pioneer-11")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("stored reports = %d, want 1 after replay", n)
	}
}
