// Package compose drafts the review narrative from a selected paper set.
package compose

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/llm"
)

// extraReferences is added to the requested minimum when instructing the
// model, leaving headroom for the reconciler to drop weak citations.
const extraReferences = 10

// underlinedReferencesRe matches a "References" heading underlined with
// hyphens, the most structured form the model emits.
var underlinedReferencesRe = regexp.MustCompile(`(?s)References\n-+\n(.*)$`)

// Composer drafts review documents through an LLM completer.
type Composer struct {
	completer llm.Completer
	logger    zerolog.Logger
}

// New creates a composer backed by the given completer.
func New(completer llm.Completer, logger zerolog.Logger) *Composer {
	return &Composer{
		completer: completer,
		logger:    logger.With().Str("component", "compose").Logger(),
	}
}

// Compose drafts a literature review narrative for the topic from the given
// papers. The draft cites papers author-date style; numbering happens later
// during reconciliation. Output missing a recognizable References section
// degrades to a document with an empty bibliography.
func (c *Composer) Compose(ctx context.Context, topic string, papers []domain.Paper, minReferences int) (*domain.ReviewDocument, error) {
	content, err := c.completer.Complete(ctx, llm.UserPrompt("compose_review", draftPrompt(topic, papers, minReferences)))
	if err != nil {
		return nil, fmt.Errorf("draft completion failed: %w", err)
	}

	narrative, bibliography := SplitDraft(content)
	if len(bibliography) == 0 {
		c.logger.Warn().Msg("draft has no recognizable references section")
	}
	c.logger.Debug().
		Int("papers", len(papers)).
		Int("bibliography", len(bibliography)).
		Msg("drafted review")

	return &domain.ReviewDocument{Narrative: narrative, Bibliography: bibliography}, nil
}

// SplitDraft separates a draft into narrative and bibliography entries.
// Strategies are tried in order: an underlined References heading, a bare
// "References" line, and finally the whole draft as narrative.
func SplitDraft(draft string) (string, []string) {
	if m := underlinedReferencesRe.FindStringSubmatchIndex(draft); m != nil {
		narrative := strings.TrimSpace(draft[:m[0]])
		return narrative, domain.SplitBibliography(draft[m[2]:m[3]])
	}

	if before, after, found := strings.Cut(draft, "References\n"); found {
		return strings.TrimSpace(before), domain.SplitBibliography(after)
	}

	return strings.TrimSpace(draft), nil
}

// draftPrompt renders the drafting instructions and the numbered papers
// block the model may cite from.
func draftPrompt(topic string, papers []domain.Paper, minReferences int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Write a comprehensive literature review on this topic: %s

Structure the review as follows:
- An introduction of 3-4 paragraphs framing the topic and its significance.
- A body of 15-20 paragraphs synthesizing the papers thematically.
- A conclusion of 2-3 paragraphs summarizing findings and open problems.

Cite papers inline in author-date style, for example (Smith, 2021).
Cite at least %d distinct papers. Never cite a paper that does not appear in the list below.
End with a References section listing every cited paper.

Papers:

`, topic, minReferences+extraReferences)

	for i, p := range papers {
		fmt.Fprintf(&b, "Paper %d:\nTitle: %s\nAuthors: %s\nDate: %s\nURL: %s\nAbstract: %s\n\n",
			i+1, p.Title, p.Authors, p.Date, p.DisplayURL(), p.Abstract)
	}
	return b.String()
}
