package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/claim-processor/internal/config"
	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/claim-processor/internal/observability/logging"
	"github.com/kirillkom/claim-processor/internal/observability/metrics"
)

// The worker consumes processed-document events and keeps per-category
// counters for downstream dashboards.
func main() {
	cfg := config.Load()
	logger := logging.NewLogger(os.Stdout, "claim-processor-worker", cfg.LogLevel, cfg.LogFormat)
	if cfg.NATSURL == "" {
		logger.Error("config_invalid", "error", "NATS_URL is required for the event worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	eventMetrics := metrics.NewEventMetrics("claim-processor-worker", registry)
	httpMetrics := metrics.NewHTTPServerMetrics("claim-processor-worker", registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	server := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	subscriber, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{Logger: logger})
	if err != nil {
		logger.Error("worker_connect_failed", "error", err)
		os.Exit(1)
	}
	defer subscriber.Close()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = subscriber.SubscribeDocumentProcessed(ctx, func(_ context.Context, event domain.ProcessedEvent) error {
		eventMetrics.ObserveEvent(event)
		logger.Info("processed_event_received",
			"document_id", event.DocumentID,
			"category", event.Category,
			"confidence", event.Confidence,
			"storage_key", event.StorageKey,
			"summary_degraded", event.SummaryDegraded,
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
