// Package main provides the entry point for the literature review service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scriptoria/litreview/internal/citations"
	"github.com/scriptoria/litreview/internal/compose"
	"github.com/scriptoria/litreview/internal/config"
	"github.com/scriptoria/litreview/internal/llm"
	"github.com/scriptoria/litreview/internal/observability"
	"github.com/scriptoria/litreview/internal/papersources"
	"github.com/scriptoria/litreview/internal/papersources/pubmed"
	"github.com/scriptoria/litreview/internal/papersources/scholar"
	"github.com/scriptoria/litreview/internal/phrases"
	"github.com/scriptoria/litreview/internal/pipeline"
	"github.com/scriptoria/litreview/internal/selection"
	httpserver "github.com/scriptoria/litreview/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger.Info().Msg("literature review service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer, "litreview")

	completer, err := llm.NewCompleter(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("create LLM completer: %w", err)
	}
	completer = llm.Instrument(completer, metrics)
	logger.Info().
		Str("provider", completer.Provider()).
		Str("model", completer.Model()).
		Msg("LLM completer ready")

	pubmedClient, err := pubmed.New(pubmed.Config{
		BaseURL:          cfg.PaperSources.PubMed.BaseURL,
		APIKey:           cfg.PaperSources.PubMed.APIKey,
		Timeout:          cfg.PaperSources.PubMed.Timeout,
		RateLimit:        cfg.PaperSources.PubMed.RateLimit,
		FetchConcurrency: cfg.PaperSources.PubMed.FetchConcurrency,
		ThrottleRetries:  cfg.PaperSources.PubMed.ThrottleRetries,
		ThrottleDelay:    cfg.PaperSources.PubMed.ThrottleDelay,
		PhrasePause:      cfg.PaperSources.PubMed.PhrasePause,
		Parser:           cfg.PaperSources.PubMed.Parser,
	}, logger)
	if err != nil {
		return fmt.Errorf("create pubmed client: %w", err)
	}

	var discoverer papersources.Discoverer
	if cfg.PaperSources.Scholar.Enabled {
		discoverer = scholar.New(scholar.Config{
			BaseURL:         cfg.PaperSources.Scholar.BaseURL,
			CrossRefBaseURL: cfg.PaperSources.Scholar.CrossRefBaseURL,
			Timeout:         cfg.PaperSources.Scholar.Timeout,
			RateLimit:       cfg.PaperSources.Scholar.RateLimit,
			ListingPages:    cfg.PaperSources.Scholar.ListingPages,
			PageSize:        cfg.PaperSources.Scholar.PageSize,
		}, logger)
	}

	registry := httpserver.NewRegistry()

	pipe := pipeline.New(
		pipeline.Config{
			ExactTopicResults: cfg.Pipeline.ExactTopicResults,
			RunTimeout:        cfg.Pipeline.RunTimeout,
		},
		pubmedClient,
		discoverer,
		phrases.New(completer, logger),
		selection.New(completer, logger),
		compose.New(completer, logger),
		citations.New(completer, logger),
		pipeline.Sinks{Progress: registry},
		metrics,
		logger,
	)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.Handler()
	}

	server := httpserver.NewServer(httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxTopicLength:  cfg.Pipeline.MaxTopicLength,
		RunTimeout:      cfg.Pipeline.RunTimeout,
	}, pipe, registry, metricsHandler, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info().Msg("stopped")
	return nil
}
