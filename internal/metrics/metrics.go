// Package metrics registers the Prometheus collectors for the fulfillment
// core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors.
type Metrics struct {
	Checkouts       *prometheus.CounterVec
	PaymentFailures prometheus.Counter
	Webhooks        *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
}

// New registers and returns the collectors.
func New() *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		PaymentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Name:      "payment_failures_total",
			Help:      "Charges declined by the payment gateway.",
		}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillment",
			Name:      "webhooks_total",
			Help:      "Provider webhook notifications by event and outcome.",
		}, []string{"event", "outcome"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fulfillment",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
	}

	prometheus.MustRegister(m.Checkouts, m.PaymentFailures, m.Webhooks, m.RequestLatency)
	return m
}

// Handler exposes the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
