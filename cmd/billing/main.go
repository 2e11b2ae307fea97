package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/skuld/internal"
	"github.com/dukerupert/skuld/internal/billing"
	"github.com/dukerupert/skuld/internal/billingsvc"
	"github.com/dukerupert/skuld/internal/event"
	"github.com/dukerupert/skuld/internal/handler/api"
	"github.com/dukerupert/skuld/internal/handler/webhook"
	"github.com/dukerupert/skuld/internal/postgres"
	"github.com/dukerupert/skuld/internal/service"
	"github.com/dukerupert/skuld/internal/telemetry"
)

// consumerGroup is the durable name shared by all billing service instances.
const consumerGroup = "billing_service"

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel, "billing")

	// Initialize Prometheus metrics
	telemetry.InitPipelineMetrics("skuld")

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Connect to the event broker
	logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("skuld-billing"))
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

	publisher, err := event.NewJetStreamPublisher(nc, cfg.NATS.FlushTimeout, logger)
	if err != nil {
		return err
	}

	// Initialize Stripe billing provider
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Initialize stores and services
	subscriptionStore := postgres.NewSubscriptionStore(pool)
	customerStore := postgres.NewCustomerStore(pool)
	subscriptionService := service.NewSubscriptionService(billingProvider, subscriptionStore, customerStore, logger)

	// Consumer loop: billing reacts to its own invoice-paid events to
	// extend the stored billing period.
	registry := event.NewRegistry()
	registry.MustRegister(
		billingsvc.NewInvoicePaidHandler(subscriptionStore, customerStore, logger),
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

	// HTTP surface: webhook ingress plus self-service cancellation
	webhookHandler := webhook.NewStripeHandler(billingProvider, subscriptionService, publisher, logger)
	cancelHandler := api.NewSubscriptionHandler(billingProvider, customerStore, publisher, cfg.JWTSecret, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", webhookHandler.HandleWebhook)
	mux.HandleFunc("/api/v1/subscription", cancelHandler.HandleCancel)
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
		logger.Info("Starting billing server", "address", server.Addr)
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
