package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/signalsfoundry/deepspace-relay/core"
	"github.com/signalsfoundry/deepspace-relay/internal/config"
	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/internal/observability"
	"github.com/signalsfoundry/deepspace-relay/internal/relay"
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

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewRelayCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("relay-server"),
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

	channel := core.NewChannelModel(cfg.Channel, rng)
	primary := relay.NewDownlink("primary", relay.SubjectGroundPrimary, nc, channel, log, nil)
	backup := relay.NewDownlink("backup", relay.SubjectGroundBackup, nc, channel, log, nil)

	compressor, err := core.NewAdaptiveCompressor(cfg.Compressor)
	if err != nil {
		log.Error(ctx, "failed to initialise compressor", logging.String("error", err.Error()))
		os.Exit(1)
	}

	pipe := core.NewRelayPipeline(cfg.Pipeline, core.PipelineDeps{
		Power:      core.NewPowerBudget(cfg.Power, nil),
		Weather:    core.NewWeatherModel(cfg.Weather, rng, nil),
		Channel:    channel,
		Detector:   core.NewAnomalyDetector(cfg.Thresholds),
		Engine:     core.NewDecisionEngine(cfg.Decision, rng, nil),
		Compressor: compressor,
		Tx:         core.NewReliableTransmitter(cfg.Transmitter, primary, backup, log, collector, nil),
		Log:        log,
		Metrics:    collector,
	})

	server, err := relay.NewServer(cfg.Server, pipe, log, collector)
	if err != nil {
		log.Error(ctx, "failed to initialise relay server", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if err := server.Start(nc); err != nil {
		log.Error(ctx, "failed to start relay server", logging.String("error", err.Error()))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down relay server")
	if err := server.Close(); err != nil {
		log.Warn(ctx, "subscription drain failed", logging.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func serveMetrics(addr string, collector *observability.RelayCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
