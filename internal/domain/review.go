package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReviewRequest represents a user's request for a literature review.
type ReviewRequest struct {
	// ID identifies the run.
	ID uuid.UUID `json:"id"`

	// Topic is the review topic. Must be non-empty.
	Topic string `json:"topic"`

	// MinReferences is the minimum number of references the narrative
	// should cite. Drives the search plan and the selection target.
	MinReferences int `json:"min_references"`

	// CreatedAt records when the request was accepted.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the request at the boundary. The core never re-validates.
func (r *ReviewRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return NewValidationError("topic", "must not be empty")
	}
	if r.MinReferences <= 0 {
		return NewValidationError("min_references", "must be positive")
	}
	return nil
}

// SelectionTarget is the size bound handed to the aggregator: the selection
// keeps at most MinReferences+20 papers beyond whatever matched exactly.
func (r *ReviewRequest) SelectionTarget() int {
	return r.MinReferences + 20
}

// SearchPlan is the phrase-count / results-per-phrase budget derived from
// the requested reference count.
type SearchPlan struct {
	// NumPhrases is how many paraphrased search phrases to generate.
	NumPhrases int `json:"num_phrases"`

	// ResultsPerPhrase is the per-phrase result budget for the metadata search.
	ResultsPerPhrase int `json:"results_per_phrase"`
}

// PlanSearch maps a minimum reference count onto a search budget. The
// thresholds widen coverage roughly linearly with the requested review size.
func PlanSearch(minReferences int) SearchPlan {
	switch {
	case minReferences < 20:
		return SearchPlan{NumPhrases: 2, ResultsPerPhrase: 10}
	case minReferences >= 96:
		return SearchPlan{NumPhrases: 42, ResultsPerPhrase: 20}
	case minReferences >= 80:
		return SearchPlan{NumPhrases: 38, ResultsPerPhrase: 18}
	case minReferences >= 60:
		return SearchPlan{NumPhrases: 35, ResultsPerPhrase: 16}
	case minReferences >= 50:
		return SearchPlan{NumPhrases: 32, ResultsPerPhrase: 14}
	case minReferences >= 40:
		return SearchPlan{NumPhrases: 24, ResultsPerPhrase: 12}
	case minReferences >= 30:
		return SearchPlan{NumPhrases: 18, ResultsPerPhrase: 10}
	default:
		return SearchPlan{NumPhrases: 16, ResultsPerPhrase: 10}
	}
}

// ReviewDocument is a narrative plus its bibliography.
//
// After reconciliation every numeric citation marker in Narrative lies in
// [1, len(Bibliography)] and every bibliography entry is cited at least
// once; both halves are regenerated together by the model, never built
// independently.
type ReviewDocument struct {
	// Narrative is the review text.
	Narrative string `json:"narrative"`

	// Bibliography holds one entry per citation slot, in citation order.
	Bibliography []string `json:"bibliography"`
}

// BibliographyText joins the bibliography entries, one per line.
func (d *ReviewDocument) BibliographyText() string {
	return strings.Join(d.Bibliography, "\n")
}

// SplitBibliography splits raw bibliography text into entries, dropping
// blank lines. The inverse of BibliographyText for well-formed input.
func SplitBibliography(text string) []string {
	var entries []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

// ReviewResult is the final output of a pipeline run.
type ReviewResult struct {
	// RequestID identifies the originating run.
	RequestID uuid.UUID `json:"request_id"`

	// Document holds the reconciled narrative and bibliography.
	Document ReviewDocument `json:"document"`

	// Papers is the aggregated paper set the narrative drew from. Its
	// order is the aggregation order, not the citation order.
	Papers []Paper `json:"papers"`

	// CitationOrder lists the distinct citation numbers in order of first
	// appearance in the reconciled narrative.
	CitationOrder []int `json:"citation_order"`

	// CitationsValid reports whether every citation marker in the
	// narrative resolves to a bibliography entry. Invalid output is
	// surfaced, not repaired.
	CitationsValid bool `json:"citations_valid"`

	// CompletedAt records when the run finished.
	CompletedAt time.Time `json:"completed_at"`
}

// FullText renders the document as the original front end displayed it:
// narrative, a References heading, then the bibliography.
func (r *ReviewResult) FullText() string {
	return r.Document.Narrative + "\n\nReferences\n\n" + r.Document.BibliographyText()
}
