package observability

import "github.com/prometheus/client_golang/prometheus"

// Payment kinds used as the "kind" label.
const (
	KindOffer        = "offer"
	KindCrowdfunding = "crowdfunding"
)

// Transition outcomes used as the "outcome" label.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
)

var (
	intentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_created_total",
			Help: "Payment intents created, by kind.",
		},
		[]string{"kind"},
	)

	// transitions counts payment-gated state changes. "rejected" covers
	// verification failures, "conflict" a lost acceptance race.
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Payment-gated state transitions, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	notificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdfunding_notification_failures_total",
			Help: "Pledge confirmations whose notification could not be written.",
		},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Processor webhook deliveries, by event type and status.",
		},
		[]string{"type", "status"},
	)
)

func init() {
	prometheus.MustRegister(intentsCreated, transitions, notificationFailures, webhookEvents)
}

// IntentCreated records a created payment intent.
func IntentCreated(kind string) { intentsCreated.WithLabelValues(kind).Inc() }

// Transition records the outcome of a payment-gated transition.
func Transition(kind, outcome string) { transitions.WithLabelValues(kind, outcome).Inc() }

// NotificationFailed records a dropped pledge notification.
func NotificationFailed() { notificationFailures.Inc() }

// WebhookEvent records a processed webhook delivery.
func WebhookEvent(typ, status string) { webhookEvents.WithLabelValues(typ, status).Inc() }
