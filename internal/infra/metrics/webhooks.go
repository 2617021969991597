package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookRequests,
		CheckoutVerifyRequests,
		GatewayCallDuration,
		GatewayUpstreamFailures,
	)
}

var (
	// result: applied|ignored|failed|invalid_signature|bad_request
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_webhook_requests_total",
			Help: "Count of gateway webhook deliveries by event and result.",
		},
		[]string{"event", "result"},
	)

	// result: ok|invalid_signature|not_found|error
	CheckoutVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_verify_requests_total",
			Help: "Count of /subscriptions/verify calls by result.",
		},
		[]string{"result"},
	)

	GatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Duration of outbound payment gateway calls, retries included.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "result"},
	)

	GatewayUpstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_failures_total",
			Help: "Outbound gateway calls that failed after all retries.",
		},
		[]string{"operation"},
	)
)

func IncWebhook(event, result string) {
	WebhookRequests.WithLabelValues(norm(event), norm(result)).Inc()
}

func IncCheckoutVerify(result string) {
	CheckoutVerifyRequests.WithLabelValues(norm(result)).Inc()
}

func IncUpstreamFailure(operation string) {
	GatewayUpstreamFailures.WithLabelValues(norm(operation)).Inc()
}
