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

	"github.com/signalsfoundry/deepspace-relay/internal/config"
	"github.com/signalsfoundry/deepspace-relay/internal/logging"
	"github.com/signalsfoundry/deepspace-relay/internal/observability"
	"github.com/signalsfoundry/deepspace-relay/internal/receiver"
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

	collector, err := observability.NewReceiverCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	store, err := receiver.OpenStore(cfg.DBPath)
	if err != nil {
		log.Error(ctx, "failed to open telemetry store",
			logging.String("path", cfg.DBPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("ground-receiver"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Error(ctx, "failed to connect to NATS", logging.String("url", cfg.NATSURL), logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer nc.Close()

	rcv := receiver.NewReceiver(store, log, collector, nil)
	if err := rcv.Start(nc); err != nil {
		log.Error(ctx, "failed to start ground receiver", logging.String("error", err.Error()))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go summarize(stopCtx, store, log)

	<-stopCtx.Done()

	log.Info(ctx, "shutting down ground receiver")
	if err := rcv.Close(); err != nil {
		log.Warn(ctx, "subscription drain failed", logging.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// summarize periodically logs the newest stored telemetry so an operator
// tailing the receiver sees what is landing.
func summarize(ctx context.Context, store *receiver.Store, log logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recent, err := store.Recent(ctx, "", 5)
			if err != nil {
				log.Warn(ctx, "recent telemetry query failed", logging.String("error", err.Error()))
				continue
			}
			for _, rec := range recent {
				log.Info(ctx, "recent telemetry",
					logging.String("spacecraft_id", rec.SpacecraftID),
					logging.Any("sequence", rec.Sequence),
					logging.String("channel", rec.Channel),
					logging.Any("received_at", rec.ReceivedAt),
				)
			}
		}
	}
}

func serveMetrics(addr string, collector *observability.ReceiverCollector, log logging.Logger) *http.Server {
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
