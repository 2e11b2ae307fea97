package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds Prometheus metrics for the subscription event
// pipeline: webhook ingress, event publishing, consumer loops, and
// notification delivery.
type PipelineMetrics struct {
	// Webhook ingress
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Event publishing
	EventsPublished *prometheus.CounterVec
	PublishFailed   *prometheus.CounterVec

	// Consumer loops
	MessagesProcessed *prometheus.CounterVec
	MessagesFailed    *prometheus.CounterVec
	PoisonMessages    *prometheus.CounterVec
	UnknownTopics     *prometheus.CounterVec

	// Notification delivery
	EmailsSent   *prometheus.CounterVec
	EmailsFailed *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers all pipeline metrics
func NewPipelineMetrics(namespace string) *PipelineMetrics {
	if namespace == "" {
		namespace = "skuld"
	}

	subsystem := "pipeline"

	m := &PipelineMetrics{
		// =======================================================================
		// Webhook Ingress (Stripe)
		// =======================================================================
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total webhooks successfully processed",
			},
			[]string{"event_type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total webhook processing failures",
			},
			[]string{"event_type", "error_type"}, // error_type: signature, not_found, publish, internal
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook processing duration",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"event_type"},
		),

		// =======================================================================
		// Event Publishing
		// =======================================================================
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_published_total",
				Help:      "Total domain events handed to the broker",
			},
			[]string{"topic"},
		),
		PublishFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "publish_failed_total",
				Help:      "Total domain events the broker rejected",
			},
			[]string{"topic"},
		),

		// =======================================================================
		// Consumer Loops
		// =======================================================================
		MessagesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_processed_total",
				Help:      "Total messages handled and acknowledged",
			},
			[]string{"service", "topic"},
		),
		MessagesFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_failed_total",
				Help:      "Total handler failures that triggered redelivery",
			},
			[]string{"service", "topic"},
		),
		PoisonMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "poison_messages_total",
				Help:      "Total undecodable messages acknowledged and dropped",
			},
			[]string{"service", "topic"},
		),
		UnknownTopics: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "unknown_topics_total",
				Help:      "Total messages received on topics with no registered handler",
			},
			[]string{"service", "topic"},
		),

		// =======================================================================
		// Notification Delivery
		// =======================================================================
		EmailsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_sent_total",
				Help:      "Total notification emails sent by type",
			},
			[]string{"email_type"}, // email_type: subscribed, unsubscribed, renewal, payment_failed
		),
		EmailsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_failed_total",
				Help:      "Total notification email delivery failures",
			},
			[]string{"email_type"},
		),
	}

	return m
}

// Global instance for easy access from handlers
var Pipeline *PipelineMetrics

// InitPipelineMetrics initializes the global pipeline metrics instance
func InitPipelineMetrics(namespace string) *PipelineMetrics {
	Pipeline = NewPipelineMetrics(namespace)
	return Pipeline
}
