// Package pipeline orchestrates a literature review run: exact topic
// search, phrase expansion, concurrent source searches, selection,
// composition, and citation reconciliation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scriptoria/litreview/internal/citations"
	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/observability"
	"github.com/scriptoria/litreview/internal/papersources"
)

// DefaultExactTopicResults is how many records the exact topic pass
// requests; those records bypass ranking entirely.
const DefaultExactTopicResults = 20

// MetadataSource searches the structured metadata API.
type MetadataSource interface {
	SearchTopic(ctx context.Context, topic string, maxResults int) ([]domain.Paper, error)
	SearchPhrases(ctx context.Context, phrases []string, budget papersources.PhraseBudget) ([]domain.Paper, error)
}

// PhraseExpander paraphrases a topic into search phrases.
type PhraseExpander interface {
	ExpandPhrases(ctx context.Context, topic string, n int) ([]string, error)
}

// Selector reduces the combined collections to the papers worth citing.
type Selector interface {
	Select(ctx context.Context, metadata, scholar []domain.Paper, topic string, target int) ([]domain.Paper, error)
}

// Composer drafts the review narrative.
type Composer interface {
	Compose(ctx context.Context, topic string, papers []domain.Paper, minReferences int) (*domain.ReviewDocument, error)
}

// Reconciler renumbers and verifies citations.
type Reconciler interface {
	Refine(ctx context.Context, doc *domain.ReviewDocument) (*citations.Result, error)
}

// Config holds the pipeline configuration.
type Config struct {
	// ExactTopicResults is the result budget of the exact topic pass.
	// Defaults to DefaultExactTopicResults if zero.
	ExactTopicResults int

	// RunTimeout bounds a whole run. Zero means no bound beyond the
	// caller's context.
	RunTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ExactTopicResults == 0 {
		c.ExactTopicResults = DefaultExactTopicResults
	}
}

// Pipeline runs literature review requests end to end.
type Pipeline struct {
	config     Config
	metadata   MetadataSource
	discoverer papersources.Discoverer
	expander   PhraseExpander
	selector   Selector
	composer   Composer
	reconciler Reconciler
	sinks      Sinks
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// New creates a pipeline. The discoverer may be nil when scholar discovery
// is disabled; all other collaborators are required. Missing sinks default
// to no-ops.
func New(
	cfg Config,
	metadata MetadataSource,
	discoverer papersources.Discoverer,
	expander PhraseExpander,
	selector Selector,
	composer Composer,
	reconciler Reconciler,
	sinks Sinks,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Pipeline {
	cfg.applyDefaults()
	sinks.applyDefaults()

	return &Pipeline{
		config:     cfg,
		metadata:   metadata,
		discoverer: discoverer,
		expander:   expander,
		selector:   selector,
		composer:   composer,
		reconciler: reconciler,
		sinks:      sinks,
		metrics:    metrics,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one review request. Source failures degrade to smaller
// collections; phrase expansion, selection, composition, and
// reconciliation failures end the run.
func (p *Pipeline) Run(ctx context.Context, req domain.ReviewRequest) (*domain.ReviewResult, error) {
	start := time.Now()
	p.metrics.RunsStarted.Inc()

	if p.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RunTimeout)
		defer cancel()
	}

	ctx = observability.WithRunID(ctx, req.ID.String())
	logger := observability.WithRunContext(p.logger, req.ID.String(), req.Topic)

	result, err := p.run(ctx, req, logger)
	if err != nil {
		p.metrics.RunsFailed.Inc()
		logger.Error().Err(err).Msg("run failed")
		return nil, err
	}

	p.metrics.RunsCompleted.Inc()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	logger.Info().
		Int("papers", len(result.Papers)).
		Int("bibliography", len(result.Document.Bibliography)).
		Bool("citations_valid", result.CitationsValid).
		Dur("duration", time.Since(start)).
		Msg("run completed")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, req domain.ReviewRequest, logger zerolog.Logger) (*domain.ReviewResult, error) {
	runID := req.ID.String()

	p.sinks.Progress.Progress(runID, "Searching for exact topic matches")
	exact := p.searchExact(ctx, req.Topic, logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.sinks.Table.PublishPapers(runID, CheckpointExactSearch, exact)

	plan := domain.PlanSearch(req.MinReferences)
	p.sinks.Progress.Progress(runID, "Generating search phrases")
	phrases, err := p.expander.ExpandPhrases(ctx, req.Topic, plan.NumPhrases)
	if err != nil {
		return nil, fmt.Errorf("phrase expansion: %w", err)
	}
	p.metrics.PhrasesGenerated.Add(float64(len(phrases)))

	p.sinks.Progress.Progress(runID, "Searching paper sources")
	metadataPapers, scholarPapers := p.searchSources(ctx, req.Topic, phrases, plan.ResultsPerPhrase, logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.sinks.Progress.Progress(runID, "Selecting papers")
	selected, err := p.selector.Select(ctx, metadataPapers, scholarPapers, req.Topic, req.SelectionTarget())
	if err != nil {
		return nil, fmt.Errorf("selection: %w", err)
	}

	// Exact matches always survive, ahead of everything ranked.
	papers := domain.DedupeByTitle(append(append([]domain.Paper{}, exact...), selected...))
	p.metrics.PapersSelected.Observe(float64(len(papers)))
	p.sinks.Table.PublishPapers(runID, CheckpointSelection, papers)

	p.sinks.Progress.Progress(runID, "Composing the review")
	doc, err := p.composer.Compose(ctx, req.Topic, papers, req.MinReferences)
	if err != nil {
		return nil, fmt.Errorf("composition: %w", err)
	}

	p.sinks.Progress.Progress(runID, "Reconciling citations")
	refined, err := p.reconciler.Refine(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("reconciliation: %w", err)
	}
	if !refined.CitationsValid {
		p.metrics.CitationsInvalid.Inc()
	}

	result := &domain.ReviewResult{
		RequestID:      req.ID,
		Document:       refined.Document,
		Papers:         papers,
		CitationOrder:  refined.CitationOrder,
		CitationsValid: refined.CitationsValid,
		CompletedAt:    time.Now().UTC(),
	}

	p.sinks.Table.PublishPapers(runID, CheckpointFinal, result.Papers)
	p.sinks.Sidebar.RenderSidebar(runID, MatchBibliography(result.Document.Bibliography, result.Papers))
	p.sinks.Progress.Progress(runID, "Review complete")
	return result, nil
}

// searchExact runs the raw-topic metadata pass. A source failure degrades
// to an empty collection.
func (p *Pipeline) searchExact(ctx context.Context, topic string, logger zerolog.Logger) []domain.Paper {
	start := time.Now()
	papers, err := p.metadata.SearchTopic(ctx, topic, p.config.ExactTopicResults)
	p.metrics.RecordSearch(string(domain.SourceTypePubMed), time.Since(start).Seconds())
	if err != nil {
		p.metrics.SearchesFailed.WithLabelValues(string(domain.SourceTypePubMed)).Inc()
		logger.Warn().Err(err).Msg("exact topic search failed")
		return nil
	}
	p.metrics.PapersFetched.WithLabelValues(string(domain.SourceTypePubMed)).Add(float64(len(papers)))
	return papers
}

// searchSources runs the phrase search and scholar discovery concurrently.
// Either source failing degrades to an empty collection; only context
// cancellation stops the other source.
func (p *Pipeline) searchSources(ctx context.Context, topic string, phrases []string, perPhrase int, logger zerolog.Logger) (metadata, scholar []domain.Paper) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		papers, err := p.metadata.SearchPhrases(gctx, phrases, papersources.PhraseBudget{MaxResults: perPhrase})
		p.metrics.RecordSearch(string(domain.SourceTypePubMed), time.Since(start).Seconds())
		if err != nil {
			p.metrics.SearchesFailed.WithLabelValues(string(domain.SourceTypePubMed)).Inc()
			logger.Warn().Err(err).Msg("phrase search failed")
			return nil
		}
		p.metrics.PapersFetched.WithLabelValues(string(domain.SourceTypePubMed)).Add(float64(len(papers)))
		metadata = papers
		return nil
	})

	if p.discoverer != nil {
		g.Go(func() error {
			start := time.Now()
			papers, err := p.discoverer.Discover(gctx, topic)
			p.metrics.RecordSearch(string(domain.SourceTypeScholar), time.Since(start).Seconds())
			if err != nil {
				p.metrics.SearchesFailed.WithLabelValues(string(domain.SourceTypeScholar)).Inc()
				logger.Warn().Err(err).Msg("scholar discovery failed")
				return nil
			}
			p.metrics.PapersFetched.WithLabelValues(string(domain.SourceTypeScholar)).Add(float64(len(papers)))
			scholar = papers
			return nil
		})
	}

	// Goroutines only return nil; Wait is for joining.
	_ = g.Wait()
	return metadata, scholar
}
