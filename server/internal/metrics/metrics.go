package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"

	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeRowNotFound = "row_not_found"
	OutcomeMalformed   = "malformed"
)

// Metrics is the set of collectors the server records, registered on a
// private registry. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	CacheRequests    *prometheus.CounterVec // route, result
	UpstreamRequests *prometheus.CounterVec // kind, outcome
	Scrapes          *prometheus.CounterVec // outcome

	handler http.Handler
}

// New registers the server's counter families on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ownerwatch_cache_requests_total",
			Help: "Cached route lookups by result.",
		}, []string{"route", "result"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ownerwatch_upstream_requests_total",
			Help: "Requests sent to the market-data provider.",
		}, []string{"kind", "outcome"}),
		Scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ownerwatch_scrapes_total",
			Help: "Owner-change table scrapes by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.CacheRequests, m.UpstreamRequests, m.Scrapes)
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// CacheEntries exposes fn as the ownerwatch_cache_entries gauge.
func (m *Metrics) CacheEntries(fn func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ownerwatch_cache_entries",
		Help: "Entries currently held by the response cache, including expired ones not yet swept.",
	}, func() float64 { return float64(fn()) }))
}

// CacheRequest counts one lookup on a cached route.
func (m *Metrics) CacheRequest(route, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(route, result).Inc()
}

// UpstreamRequest counts one request to the provider.
func (m *Metrics) UpstreamRequest(kind, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(kind, outcome).Inc()
}

// Scrape counts one owner-table parse.
func (m *Metrics) Scrape(outcome string) {
	if m == nil {
		return
	}
	m.Scrapes.WithLabelValues(outcome).Inc()
}

// ServeHTTP writes the registry in the exposition format the client accepts.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m.handler.ServeHTTP(w, r)
}
