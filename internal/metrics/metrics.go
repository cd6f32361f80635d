package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors of the service
type Metrics struct {
	registry *prometheus.Registry

	WorkflowOutcomes *prometheus.CounterVec
	WorkflowDuration prometheus.Histogram
	ProviderCalls    *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	InFlight         prometheus.Gauge
	RankOutcomes     *prometheus.CounterVec
	SearchRequests   *prometheus.CounterVec
	Records          *prometheus.GaugeVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		WorkflowOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gostreamarr_resolution_workflows_total",
			Help: "Resolution workflows by terminal state",
		}, []string{"state"}),
		WorkflowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gostreamarr_resolution_workflow_duration_seconds",
			Help:    "Time from submission to a terminal state",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
		}),
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gostreamarr_provider_calls_total",
			Help: "Resolution provider calls by operation and result",
		}, []string{"operation", "result"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gostreamarr_resolution_cache_lookups_total",
			Help: "Resolution lookups by how they were answered",
		}, []string{"result"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gostreamarr_resolution_in_flight",
			Help: "Resolution workflows currently running",
		}),
		RankOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gostreamarr_rank_candidates_total",
			Help: "Ranked candidates by outcome (accepted or rejection reason)",
		}, []string{"outcome"}),
		SearchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gostreamarr_search_requests_total",
			Help: "Indexer searches by result",
		}, []string{"result"}),
		Records: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gostreamarr_resolution_records",
			Help: "Persisted resolution records by media type",
		}, []string{"media_type"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
