package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the review pipeline.
// Metrics are organized by subsystem: runs, phrases, searches, papers,
// and LLM operations. All collectors are registered on the Registerer
// passed to NewMetrics via promauto.
type Metrics struct {
	// RunsStarted counts the pipeline runs initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts the runs that finished successfully.
	RunsCompleted prometheus.Counter

	// RunsFailed counts the runs that ended in failure.
	RunsFailed prometheus.Counter

	// RunDuration observes the end-to-end duration of runs in seconds.
	RunDuration prometheus.Histogram

	// PhrasesGenerated counts search phrases produced by expansion.
	PhrasesGenerated prometheus.Counter

	// SearchesStarted counts searches initiated, labeled by paper source.
	SearchesStarted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by paper source.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by paper source.
	SearchDuration *prometheus.HistogramVec

	// PapersFetched counts paper records fetched, labeled by paper source.
	PapersFetched *prometheus.CounterVec

	// PapersDropped counts records discarded during fetch or cross-reference,
	// labeled by source and reason (parse_error, no_abstract, no_result).
	PapersDropped *prometheus.CounterVec

	// PapersDuplicate counts duplicates removed during merges.
	PapersDuplicate prometheus.Counter

	// PapersSelected observes the final selection size per run.
	PapersSelected prometheus.Histogram

	// SourceRateLimited counts rate-limit signals from sources.
	SourceRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts LLM calls, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM calls, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM call duration in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// CitationsInvalid counts runs whose reconciled citations failed validation.
	CitationsInvalid prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics on the given
// Registerer under the given namespace. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of review pipeline runs initiated.",
		}),
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of review pipeline runs completed successfully.",
		}),
		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of review pipeline runs that failed.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end review pipeline run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		PhrasesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phrases_generated_total",
			Help:      "Total number of paraphrased search phrases generated.",
		}),
		SearchesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of source searches initiated.",
		}, []string{"source"}),
		SearchesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of source searches that failed.",
		}, []string{"source"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Source search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		PapersFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Total number of paper records fetched.",
		}, []string{"source"}),
		PapersDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_dropped_total",
			Help:      "Total number of paper records dropped during fetch.",
		}, []string{"source", "reason"}),
		PapersDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of duplicate paper records removed during merges.",
		}),
		PapersSelected: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_selected",
			Help:      "Distribution of final selection sizes per run.",
			Buckets:   prometheus.LinearBuckets(0, 20, 10),
		}),
		SourceRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limit signals received from sources.",
		}, []string{"source"}),
		LLMRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completion requests.",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM completion requests.",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"operation", "model"}),
		CitationsInvalid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_invalid_total",
			Help:      "Total number of runs whose citation validation failed.",
		}),
	}
}

// RecordSearch records a completed source search.
func (m *Metrics) RecordSearch(source string, durationSeconds float64) {
	m.SearchesStarted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordPaperDropped records a record discarded during fetch.
func (m *Metrics) RecordPaperDropped(source, reason string) {
	m.PapersDropped.WithLabelValues(source, reason).Inc()
}

// RecordLLMRequest records an LLM completion call.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM completion call.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
