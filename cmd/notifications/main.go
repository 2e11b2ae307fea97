package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/skuld/internal"
	"github.com/dukerupert/skuld/internal/email"
	"github.com/dukerupert/skuld/internal/event"
	"github.com/dukerupert/skuld/internal/notifysvc"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// consumerGroup is the durable name shared by all notification service instances.
const consumerGroup = "notification_service"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel, "notifications")

	// Initialize Prometheus metrics
	telemetry.InitPipelineMetrics("skuld")

	// Connect to the event broker
	logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("skuld-notifications"))
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	defer nc.Drain()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	if err := event.EnsureStream(js, cfg.NATS.Stream); err != nil {
		return err
	}

	// Notification delivery over SMTP
	sender := email.NewSMTPSender(&email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     int(cfg.SMTP.Port),
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}, logger)

	registry := event.NewRegistry()
	registry.MustRegister(
		notifysvc.NewSubscribedHandler(sender, logger),
		notifysvc.NewUnsubscribedHandler(sender, logger),
		notifysvc.NewRenewalHandler(sender, logger),
		notifysvc.NewPaymentFailedHandler(sender, logger),
	)

	fetcher, err := event.NewJetStreamFetcher(js, cfg.NATS.Stream, consumerGroup, cfg.NATS.FetchWait)
	if err != nil {
		return err
	}
	defer fetcher.Unsubscribe()

	consumer := event.NewConsumer(consumerGroup, fetcher, registry, logger)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil {
			logger.Error("consumer stopped with error", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting notification server", "address", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	<-consumerDone

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
