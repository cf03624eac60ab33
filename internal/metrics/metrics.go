// Package metrics holds the Prometheus collectors exported by the API
// server. Each Metrics owns a dedicated registry so tests can build as
// many as they like.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecojourney"

// Metrics groups the collectors.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	FlightCalculations *prometheus.CounterVec
	FlightCO2eKg       prometheus.Histogram
	SAFContributions   prometheus.Counter
	SAFLiters          prometheus.Counter
	SAFAvoidedKg       prometheus.Counter
	OffsetPurchases    prometheus.Counter
	PointsAwarded      *prometheus.CounterVec
	TierUpgrades       *prometheus.CounterVec
	NudgesDelivered    *prometheus.CounterVec
	NudgesDismissed    *prometheus.CounterVec
}

// New builds a Metrics with every collector registered on a fresh
// registry. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests."},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"method", "path", "status"},
		),
		FlightCalculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "flight_calculations_total", Help: "Flight emission calculations by outcome."},
			[]string{"result"},
		),
		FlightCO2eKg: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Name: "flight_co2e_kg", Help: "CO2e per calculated booking in kg.", Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000}},
		),
		SAFContributions: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "saf_contributions_total", Help: "SAF book-and-claim contributions created."},
		),
		SAFLiters: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "saf_liters_total", Help: "Litres of SAF attributed."},
		),
		SAFAvoidedKg: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "saf_co2e_avoided_kg_total", Help: "CO2e avoided through SAF in kg."},
		),
		OffsetPurchases: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "offset_purchases_total", Help: "Generic offset purchases."},
		),
		PointsAwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "points_awarded_total", Help: "Eco-points credited by action kind."},
			[]string{"action"},
		),
		TierUpgrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "tier_upgrades_total", Help: "Tier upgrades by destination tier."},
			[]string{"tier"},
		),
		NudgesDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "nudges_delivered_total", Help: "Nudges delivered by rule."},
			[]string{"nudge"},
		),
		NudgesDismissed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "nudges_dismissed_total", Help: "Nudges dismissed by rule."},
			[]string{"nudge"},
		),
	}

	m.Registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.FlightCalculations,
		m.FlightCO2eKg,
		m.SAFContributions,
		m.SAFLiters,
		m.SAFAvoidedKg,
		m.OffsetPurchases,
		m.PointsAwarded,
		m.TierUpgrades,
		m.NudgesDelivered,
		m.NudgesDismissed,
	)
	if withRuntime {
		m.Registry.MustRegister(collectors.NewGoCollector())
		m.Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide Metrics, including runtime collectors.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(true)
	})
	return defaultMetrics
}
