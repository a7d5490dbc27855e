// Package metrics exposes Prometheus instrumentation for search runs, contact
// crawls and keyword mining.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leadsmith"

// Metrics holds all leadsmith collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Search metrics
	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	SearchResults  prometheus.Histogram
	LeadsCreated   *prometheus.CounterVec
	QuotaRemaining prometheus.Gauge
	QuotaDenied    prometheus.Counter

	// Crawl metrics
	PagesFetched     *prometheus.CounterVec
	ContactsFound    *prometheus.CounterVec
	SuggestionsAdded prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search provider calls by outcome (success, failed, denied)",
		}, []string{"outcome"}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of search provider calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 8, 10},
		}),
		LeadsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_created_total",
			Help:      "Leads created by initial tab",
		}, []string{"tab"}),
		QuotaRemaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Searches left today, -1 when unlimited",
		}),
		QuotaDenied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denied_total",
			Help:      "Searches refused by the daily ceiling",
		}),
		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages requested by the crawler and miner by outcome",
		}, []string{"outcome"}),
		ContactsFound: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contacts_found_total",
			Help:      "Contact fields found by kind (email, phone, tax_id)",
		}, []string{"kind"}),
		SuggestionsAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_added_total",
			Help:      "New keyword suggestions stored",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordSearch records the outcome of one search attempt.
func (m *Metrics) RecordSearch(outcome string, d time.Duration, results int) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(outcome).Inc()
	if outcome == "denied" {
		m.QuotaDenied.Inc()
		return
	}
	m.SearchDuration.Observe(d.Seconds())
	if outcome == "success" {
		m.SearchResults.Observe(float64(results))
	}
}

// RecordLead counts a newly created lead.
func (m *Metrics) RecordLead(tab string) {
	if m == nil {
		return
	}
	m.LeadsCreated.WithLabelValues(tab).Inc()
}

// SetQuotaRemaining updates the remaining quota gauge.
func (m *Metrics) SetQuotaRemaining(n int) {
	if m == nil {
		return
	}
	m.QuotaRemaining.Set(float64(n))
}

// RecordPage counts a page fetch.
func (m *Metrics) RecordPage(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.PagesFetched.WithLabelValues(outcome).Inc()
}

// RecordContact counts a contact field found on a site.
func (m *Metrics) RecordContact(kind string) {
	if m == nil {
		return
	}
	m.ContactsFound.WithLabelValues(kind).Inc()
}

// RecordSuggestions adds n stored suggestions.
func (m *Metrics) RecordSuggestions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SuggestionsAdded.Add(float64(n))
}
