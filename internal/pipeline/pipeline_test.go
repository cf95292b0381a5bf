package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/litreview/internal/citations"
	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/observability"
	"github.com/scriptoria/litreview/internal/papersources"
)

type stubMetadata struct {
	topicPapers  []domain.Paper
	phrasePapers []domain.Paper
	topicErr     error
	phraseErr    error
	gotPhrases   []string
	gotBudget    papersources.PhraseBudget
	gotMax       int
}

func (s *stubMetadata) SearchTopic(_ context.Context, _ string, maxResults int) ([]domain.Paper, error) {
	s.gotMax = maxResults
	return s.topicPapers, s.topicErr
}

func (s *stubMetadata) SearchPhrases(_ context.Context, phrases []string, budget papersources.PhraseBudget) ([]domain.Paper, error) {
	s.gotPhrases = phrases
	s.gotBudget = budget
	return s.phrasePapers, s.phraseErr
}

type stubDiscoverer struct {
	papers []domain.Paper
	err    error
}

func (s *stubDiscoverer) Discover(context.Context, string) ([]domain.Paper, error) {
	return s.papers, s.err
}

type stubExpander struct {
	phrases []string
	err     error
	gotN    int
}

func (s *stubExpander) ExpandPhrases(_ context.Context, _ string, n int) ([]string, error) {
	s.gotN = n
	return s.phrases, s.err
}

type stubSelector struct {
	selected    []domain.Paper
	err         error
	gotMetadata []domain.Paper
	gotScholar  []domain.Paper
	gotTarget   int
}

func (s *stubSelector) Select(_ context.Context, metadata, scholar []domain.Paper, _ string, target int) ([]domain.Paper, error) {
	s.gotMetadata = metadata
	s.gotScholar = scholar
	s.gotTarget = target
	return s.selected, s.err
}

type stubComposer struct {
	doc       *domain.ReviewDocument
	err       error
	gotPapers []domain.Paper
}

func (s *stubComposer) Compose(_ context.Context, _ string, papers []domain.Paper, _ int) (*domain.ReviewDocument, error) {
	s.gotPapers = papers
	return s.doc, s.err
}

type stubReconciler struct {
	result *citations.Result
	err    error
}

func (s *stubReconciler) Refine(context.Context, *domain.ReviewDocument) (*citations.Result, error) {
	return s.result, s.err
}

type recordingSinks struct {
	statuses    []string
	checkpoints map[string][]domain.Paper
	sidebar     []SidebarEntry
}

func (r *recordingSinks) Progress(_, status string) { r.statuses = append(r.statuses, status) }
func (r *recordingSinks) PublishPapers(_, checkpoint string, papers []domain.Paper) {
	if r.checkpoints == nil {
		r.checkpoints = make(map[string][]domain.Paper)
	}
	r.checkpoints[checkpoint] = papers
}
func (r *recordingSinks) RenderSidebar(_ string, entries []SidebarEntry) { r.sidebar = entries }

func paper(title string) domain.Paper {
	return domain.Paper{Title: title, Abstract: "about " + title}
}

func newRequest(minRefs int) domain.ReviewRequest {
	return domain.ReviewRequest{ID: uuid.New(), Topic: "gene therapy", MinReferences: minRefs}
}

func newTestPipeline(
	metadata *stubMetadata,
	discoverer *stubDiscoverer,
	expander *stubExpander,
	selector *stubSelector,
	composer *stubComposer,
	reconciler *stubReconciler,
	sinks Sinks,
) *Pipeline {
	metrics := observability.NewMetrics(prometheus.NewRegistry(), "test")
	var disc papersources.Discoverer
	if discoverer != nil {
		disc = discoverer
	}
	return New(Config{}, metadata, disc, expander, selector, composer, reconciler, sinks, metrics, zerolog.Nop())
}

func TestRun(t *testing.T) {
	metadata := &stubMetadata{
		topicPapers:  []domain.Paper{paper("Exact match")},
		phrasePapers: []domain.Paper{paper("Phrase hit")},
	}
	discoverer := &stubDiscoverer{papers: []domain.Paper{paper("Scholar hit")}}
	expander := &stubExpander{phrases: []string{"p1", "p2"}}
	selector := &stubSelector{selected: []domain.Paper{paper("Phrase hit"), paper("Scholar hit")}}
	composer := &stubComposer{doc: &domain.ReviewDocument{Narrative: "draft"}}
	reconciler := &stubReconciler{result: &citations.Result{
		Document: domain.ReviewDocument{
			Narrative:    "Refined [1-2].",
			Bibliography: []string{"[1] A.", "[2] B."},
		},
		CitationOrder:  []int{1, 2},
		CitationsValid: true,
	}}
	sinks := &recordingSinks{}

	p := newTestPipeline(metadata, discoverer, expander, selector, composer, reconciler,
		Sinks{Progress: sinks, Table: sinks, Sidebar: sinks})

	req := newRequest(30)
	result, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req.ID, result.RequestID)
	assert.Equal(t, "Refined [1-2].", result.Document.Narrative)
	assert.Equal(t, []int{1, 2}, result.CitationOrder)
	assert.True(t, result.CitationsValid)
	assert.False(t, result.CompletedAt.IsZero())

	// Exact matches lead the composed set.
	require.Len(t, result.Papers, 3)
	assert.Equal(t, "Exact match", result.Papers[0].Title)
	assert.Equal(t, result.Papers, composer.gotPapers)

	// Search plan for 30 references: 18 phrases, 10 results per phrase.
	assert.Equal(t, 18, expander.gotN)
	assert.Equal(t, []string{"p1", "p2"}, metadata.gotPhrases)
	assert.Equal(t, 10, metadata.gotBudget.MaxResults)
	assert.Equal(t, DefaultExactTopicResults, metadata.gotMax)

	assert.Equal(t, []domain.Paper{paper("Phrase hit")}, selector.gotMetadata)
	assert.Equal(t, []domain.Paper{paper("Scholar hit")}, selector.gotScholar)
	assert.Equal(t, 50, selector.gotTarget)

	assert.Contains(t, sinks.checkpoints, CheckpointExactSearch)
	assert.Contains(t, sinks.checkpoints, CheckpointSelection)
	assert.Contains(t, sinks.checkpoints, CheckpointFinal)
	assert.Len(t, sinks.sidebar, 2)
	assert.Equal(t, "Review complete", sinks.statuses[len(sinks.statuses)-1])
}

func TestRunSourceFailuresDegrade(t *testing.T) {
	metadata := &stubMetadata{
		topicErr:  errors.New("esearch down"),
		phraseErr: errors.New("esearch down"),
	}
	discoverer := &stubDiscoverer{err: errors.New("scrape blocked")}
	selector := &stubSelector{}
	composer := &stubComposer{doc: &domain.ReviewDocument{Narrative: "draft"}}
	reconciler := &stubReconciler{result: &citations.Result{CitationsValid: true}}

	p := newTestPipeline(metadata, discoverer, &stubExpander{phrases: []string{"p"}},
		selector, composer, reconciler, Sinks{})

	result, err := p.Run(context.Background(), newRequest(10))
	require.NoError(t, err)

	assert.Empty(t, result.Papers)
	assert.Empty(t, selector.gotMetadata)
	assert.Empty(t, selector.gotScholar)
}

func TestRunExpansionFailureFailsRun(t *testing.T) {
	p := newTestPipeline(&stubMetadata{}, nil, &stubExpander{err: errors.New("provider down")},
		&stubSelector{}, &stubComposer{}, &stubReconciler{}, Sinks{})

	_, err := p.Run(context.Background(), newRequest(10))
	assert.Error(t, err)
}

func TestRunStageFailuresFailRun(t *testing.T) {
	tests := []struct {
		name       string
		selector   *stubSelector
		composer   *stubComposer
		reconciler *stubReconciler
	}{
		{
			name:       "selection",
			selector:   &stubSelector{err: context.Canceled},
			composer:   &stubComposer{},
			reconciler: &stubReconciler{},
		},
		{
			name:       "composition",
			selector:   &stubSelector{},
			composer:   &stubComposer{err: errors.New("draft failed")},
			reconciler: &stubReconciler{},
		},
		{
			name:       "reconciliation",
			selector:   &stubSelector{},
			composer:   &stubComposer{doc: &domain.ReviewDocument{}},
			reconciler: &stubReconciler{err: errors.New("refine failed")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(&stubMetadata{}, nil, &stubExpander{phrases: []string{"p"}},
				tt.selector, tt.composer, tt.reconciler, Sinks{})

			_, err := p.Run(context.Background(), newRequest(10))
			assert.Error(t, err)
		})
	}
}

func TestRunInvalidCitationsSurfaced(t *testing.T) {
	reconciler := &stubReconciler{result: &citations.Result{
		Document:       domain.ReviewDocument{Narrative: "[9]", Bibliography: []string{"[1] A."}},
		CitationOrder:  []int{9},
		CitationsValid: false,
	}}

	p := newTestPipeline(&stubMetadata{}, nil, &stubExpander{phrases: []string{"p"}},
		&stubSelector{}, &stubComposer{doc: &domain.ReviewDocument{}}, reconciler, Sinks{})

	result, err := p.Run(context.Background(), newRequest(10))
	require.NoError(t, err)
	assert.False(t, result.CitationsValid)
	assert.Equal(t, []int{9}, result.CitationOrder)
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(&stubMetadata{}, nil, &stubExpander{phrases: []string{"p"}},
		&stubSelector{}, &stubComposer{}, &stubReconciler{}, Sinks{})

	_, err := p.Run(ctx, newRequest(10))
	assert.Error(t, err)
}

func TestMatchBibliography(t *testing.T) {
	papers := []domain.Paper{
		{Title: "Gene therapy advances"},
		{Title: "CRISPR delivery systems"},
	}

	entries := []string{
		"[1] Smith J. (2021). Gene therapy advances. Journal of Things.",
		"[2] CRISPR delivery systems",
		"[3] Doe J. (2020). Something unrelated. Elsewhere.",
	}

	matched := MatchBibliography(entries, papers)
	require.Len(t, matched, 3)

	require.NotNil(t, matched[0].Paper)
	assert.Equal(t, "Gene therapy advances", matched[0].Paper.Title)

	require.NotNil(t, matched[1].Paper)
	assert.Equal(t, "CRISPR delivery systems", matched[1].Paper.Title)

	assert.Nil(t, matched[2].Paper)
	assert.Equal(t, entries[2], matched[2].Reference)
}
