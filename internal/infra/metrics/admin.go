package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(adminDecisionsTotal, adminNotificationsTotal, httpRequestsTotal)
}

var (
	adminDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_payment_decisions_total",
			Help: "Manual payment reviews by action and outcome.",
		},
		[]string{"action", "status"}, // status: 'ok', 'error'
	)

	// status: sent|error
	adminNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_notifications_total",
			Help: "Reviewer notifications by delivery status.",
		},
		[]string{"status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern and status code class.",
		},
		[]string{"route", "code"},
	)
)

func IncAdminDecision(action, status string) {
	adminDecisionsTotal.WithLabelValues(norm(action), norm(status)).Inc()
}

func IncAdminNotification(status string) {
	adminNotificationsTotal.WithLabelValues(norm(status)).Inc()
}

func IncHTTPRequest(route, code string) {
	httpRequestsTotal.WithLabelValues(norm(route), code).Inc()
}
