// Package papersources provides clients for collecting academic paper records.
//
// Two kinds of clients feed the review pipeline: a metadata searcher that
// queries a structured metadata API with search phrases, and a discoverer
// that scrapes listing pages for titles and cross-references them. Both
// share the rate-limited HTTP client in this package.
package papersources

import (
	"context"

	"github.com/scriptoria/litreview/internal/domain"
)

// PhraseBudget bounds a single phrase search.
type PhraseBudget struct {
	// MaxResults is the maximum number of record IDs requested per phrase.
	MaxResults int
}

// MetadataSearcher queries a structured metadata API for paper records.
type MetadataSearcher interface {
	// SearchPhrases runs one search per phrase, strictly in order, and
	// returns every record that parsed successfully. Per-record failures
	// drop the record; per-phrase failures drop the phrase. The error
	// return covers only context cancellation.
	SearchPhrases(ctx context.Context, phrases []string, budget PhraseBudget) ([]domain.Paper, error)
}

// Discoverer finds paper records by scraping listing pages for a topic
// and cross-referencing the discovered titles.
type Discoverer interface {
	// Discover returns the cross-referenced records for the topic.
	// Titles that cannot be resolved are dropped, never fatal.
	Discover(ctx context.Context, topic string) ([]domain.Paper, error)
}
