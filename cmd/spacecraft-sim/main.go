package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/internal/config"
	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/internal/relay"
	"github.com/signalsfoundry/deepspace-relay/internal/spacecraft"
	"github.com/signalsfoundry/deepspace-relay/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file; defaults apply when empty")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if len(cfg.Spacecraft) == 0 {
		log.Error(ctx, "no spacecraft configured")
		os.Exit(1)
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("spacecraft-sim"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Error(ctx, "failed to connect to NATS", logging.String("url", cfg.NATSURL), logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer nc.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := core.NewRand(seed)

	epoch := time.Now().UTC()
	clock := timectrl.NewTimeController(epoch, cfg.Sim.Tick, cfg.Sim.Scale)

	fleet := make([]*spacecraft.Spacecraft, 0, len(cfg.Spacecraft))
	for _, sc := range cfg.Spacecraft {
		if sc.Elements.SemiMajorAxisKm == 0 && sc.TLE1 == "" {
			sc.Elements = spacecraft.RandomElements(rng)
		}
		motion := spacecraft.NewMotionModel(sc.Elements, sc.TLE1, sc.TLE2, epoch)
		fleet = append(fleet, spacecraft.New(sc, motion, rng, log))
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := clock.Run(runCtx)

	interval := cfg.Sim.SendInterval
	if cfg.Sim.Scale > 1 {
		interval = time.Duration(float64(interval) / cfg.Sim.Scale)
	}
	if interval <= 0 {
		interval = time.Second
	}

	var wg sync.WaitGroup
	for _, craft := range fleet {
		wg.Add(1)
		go func(craft *spacecraft.Spacecraft) {
			defer wg.Done()
			runCraft(runCtx, nc, craft, clock, interval, log)
		}(craft)
	}

	<-done
	wg.Wait()
	log.Info(ctx, "spacecraft simulation stopped")
}

// runCraft generates a report every interval of wall time, stamped with
// the controller's scaled simulation time, and applies any commands the
// relay returns.
func runCraft(ctx context.Context, nc *nats.Conn, craft *spacecraft.Spacecraft, clock timectrl.SimClock, interval time.Duration, log logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendReport(ctx, nc, craft, clock.Now(), log)
		}
	}
}

func sendReport(ctx context.Context, nc *nats.Conn, craft *spacecraft.Spacecraft, simTime time.Time, log logging.Logger) {
	report := craft.GenerateReport(ctx, simTime)

	data, err := json.Marshal(report)
	if err != nil {
		log.Error(ctx, "failed to encode telemetry report",
			logging.String("spacecraft", craft.ID()), logging.String("error", err.Error()))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg, err := nc.RequestWithContext(reqCtx, relay.SubjectTelemetry, data)
	if err != nil {
		log.Warn(ctx, "telemetry uplink failed",
			logging.String("spacecraft", craft.ID()),
			logging.Any("sequence", report.Sequence),
			logging.String("error", err.Error()))
		return
	}

	var env relay.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Warn(ctx, "malformed relay response",
			logging.String("spacecraft", craft.ID()), logging.String("error", err.Error()))
		return
	}

	log.Debug(ctx, "telemetry acknowledged",
		logging.String("spacecraft", craft.ID()),
		logging.Any("sequence", report.Sequence),
		logging.String("status", env.Status),
		logging.Int("commands", len(env.Commands)))

	for _, cmd := range env.Commands {
		craft.Enqueue(ctx, cmd)
	}
}
