package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue extracts the current value of a counter.
func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "litreview_test")

	m.RunsStarted.Inc()
	m.PapersFetched.WithLabelValues("pubmed").Add(3)
	m.RecordSearch("scholar", 1.5)
	m.RecordPaperDropped("scholar", "no_abstract")
	m.RecordLLMRequest("ranking", "test-model", 0.5)
	m.RecordLLMRequestFailed("ranking", "test-model", "rate_limited")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	assert.True(t, names["litreview_test_runs_started_total"])
	assert.True(t, names["litreview_test_papers_fetched_total"])
	assert.True(t, names["litreview_test_search_duration_seconds"])
	assert.True(t, names["litreview_test_papers_dropped_total"])
	assert.True(t, names["litreview_test_llm_requests_total"])
	assert.True(t, names["litreview_test_llm_requests_failed_total"])

	assert.Equal(t, 1.0, counterValue(t, m.RunsStarted))
}

func TestMetricsIndependentRegistries(t *testing.T) {
	// Two instances on separate registries must not collide.
	m1 := NewMetrics(prometheus.NewRegistry(), "litreview")
	m2 := NewMetrics(prometheus.NewRegistry(), "litreview")

	m1.RunsStarted.Inc()
	assert.Equal(t, 1.0, counterValue(t, m1.RunsStarted))
	assert.Equal(t, 0.0, counterValue(t, m2.RunsStarted))
}
