// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_orders_created_total",
			Help: "Orders created, by payment mode (demo or checkout)",
		},
		[]string{"mode"},
	)

	OrdersFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_orders_finalized_total",
			Help: "Orders moved out of PENDING, by outcome",
		},
		[]string{"outcome"},
	)

	CheckoutSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_checkout_sessions_total",
			Help: "Payment session creation attempts, by result",
		},
		[]string{"result"},
	)

	MessagesPostedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_messages_posted_total",
			Help: "Messages appended to conversations",
		},
	)

	ItemViewsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_item_views_total",
			Help: "Item view events recorded",
		},
	)

	RecommendationsSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_recommendations_size",
			Help:    "Number of items returned per recommendation request",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6},
		},
		[]string{"variant"},
	)
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordOrderCreated(demo bool) {
	mode := "checkout"
	if demo {
		mode = "demo"
	}
	OrdersCreatedTotal.WithLabelValues(mode).Inc()
}

func RecordOrderFinalized(outcome string) {
	OrdersFinalizedTotal.WithLabelValues(outcome).Inc()
}

func RecordCheckoutSession(err error) {
	result := "created"
	if err != nil {
		result = "failed"
	}
	CheckoutSessionsTotal.WithLabelValues(result).Inc()
}

func RecordMessagePosted() {
	MessagesPostedTotal.Inc()
}

func RecordItemView() {
	ItemViewsTotal.Inc()
}

func RecordRecommendations(variant string, size int) {
	RecommendationsSize.WithLabelValues(variant).Observe(float64(size))
}
