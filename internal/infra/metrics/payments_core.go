package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		upiRateLimitedTotal,
	)
}

var (
	// method: upi|razorpay; status: submitted|succeeded|rejected|failed|duplicate
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment attempts by method and status.",
		},
		[]string{"method", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	upiRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upi_submissions_rate_limited_total",
			Help: "Total number of UPI submissions refused by the per-user rate limit.",
		},
	)
)

func IncPayment(method, status string) {
	paymentsTotal.WithLabelValues(norm(method), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncUPIRateLimited() {
	upiRateLimitedTotal.Inc()
}
