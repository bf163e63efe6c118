// Package metrics exposes ledger outcomes as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coupon_ledger"

// Metrics implements service.Recorder on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	created       *prometheus.CounterVec
	validations   *prometheus.CounterVec
	redemptions   *prometheus.CounterVec
	discountGiven prometheus.Histogram
}

// New creates the ledger metrics and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupons_created_total",
			Help:      "Coupon creation attempts by outcome.",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Coupon validations by outcome.",
		}, []string{"outcome"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Coupon redemption attempts by outcome.",
		}, []string{"outcome"}),
		discountGiven: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redeemed_discount_percent",
			Help:      "Discount percentage of successful redemptions.",
			Buckets:   []float64{5, 10, 15, 20, 25, 50, 75, 100},
		}),
	}

	m.registry.MustRegister(
		m.created,
		m.validations,
		m.redemptions,
		m.discountGiven,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CouponCreated counts a create attempt.
func (m *Metrics) CouponCreated(outcome string) {
	m.created.WithLabelValues(outcome).Inc()
}

// CouponValidated counts a validation.
func (m *Metrics) CouponValidated(outcome string) {
	m.validations.WithLabelValues(outcome).Inc()
}

// CouponRedeemed counts a redemption attempt and, on success, its discount.
func (m *Metrics) CouponRedeemed(outcome string, discount int) {
	m.redemptions.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.discountGiven.Observe(float64(discount))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
