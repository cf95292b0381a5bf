// Package observability provides logging and metrics support for the
// review pipeline.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("run_id", runID).Msg("pipeline run started")
//
// Add run context to a logger:
//
//	logger = observability.WithRunContext(logger, runID, topic)
//
// # Metrics
//
// Initialize metrics on a registry:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer, "litreview")
//
// Record metrics:
//
//	metrics.RunsStarted.Inc()
//	metrics.PapersFetched.WithLabelValues("pubmed").Inc()
package observability
