package metrics

import "github.com/prometheus/client_golang/prometheus"

// Webhook outcomes recorded per event type.
const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeFailed    = "failed"
	WebhookOutcomeRejected  = "rejected"
)

// CheckoutMetrics tracks checkout sessions, order creation and webhook handling.
type CheckoutMetrics struct {
	sessions      *prometheus.CounterVec
	orders        *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_sessions_total",
		Help:      "Checkout sessions requested from the payment provider by result.",
	}, []string{"result"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders created by payment method.",
	}, []string{"payment_method"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Payment provider webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(sessions, orders, webhookEvents)
	return &CheckoutMetrics{
		sessions:      sessions,
		orders:        orders,
		webhookEvents: webhookEvents,
	}
}

// SessionCreated counts a successful checkout session.
func (m *CheckoutMetrics) SessionCreated() {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues("created").Inc()
}

// SessionFailed counts a rejected or failed checkout session request.
func (m *CheckoutMetrics) SessionFailed() {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues("failed").Inc()
}

// OrderCreated counts an order for the given payment method.
func (m *CheckoutMetrics) OrderCreated(paymentMethod string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// WebhookEvent counts one webhook delivery.
func (m *CheckoutMetrics) WebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
