// Package metrics holds the prometheus instruments shared by the client and
// the controllers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	searchDuration *prometheus.HistogramVec
	searchTotal    *prometheus.CounterVec
	logins         *prometheus.CounterVec
	toggles        *prometheus.CounterVec
}

// New registers all instruments on reg. A nil reg yields inert metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	searchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "danaom_search_duration_seconds",
		Help:    "Latency of remote catalog searches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	searchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "danaom_search_requests_total",
		Help: "Remote catalog searches by outcome.",
	}, []string{"outcome"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "danaom_logins_total",
		Help: "Login attempts by resulting state.",
	}, []string{"state"})
	toggles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "danaom_wishlist_toggles_total",
		Help: "Wishlist membership changes by action.",
	}, []string{"action"})
	reg.MustRegister(searchDuration, searchTotal, logins, toggles)
	return &Metrics{
		searchDuration: searchDuration,
		searchTotal:    searchTotal,
		logins:         logins,
		toggles:        toggles,
	}
}

// ObserveSearch records one remote call.
func (m *Metrics) ObserveSearch(outcome string, d time.Duration) {
	if m == nil || m.searchTotal == nil {
		return
	}
	outcome = label(outcome)
	m.searchTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncLogin counts a finished login attempt.
func (m *Metrics) IncLogin(state string) {
	if m == nil || m.logins == nil {
		return
	}
	m.logins.WithLabelValues(label(state)).Inc()
}

// IncToggle counts a wishlist add or remove.
func (m *Metrics) IncToggle(action string) {
	if m == nil || m.toggles == nil {
		return
	}
	m.toggles.WithLabelValues(label(action)).Inc()
}

// Handler exposes g in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
