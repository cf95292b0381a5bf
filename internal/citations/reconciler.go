// Package citations converts a drafted review's author-date citations into
// numbered markers and checks that every marker resolves to a bibliography
// entry.
package citations

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scriptoria/litreview/internal/compose"
	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/llm"
)

// citationGroupRe matches a bracketed citation group: digits, spaces,
// commas, and hyphens, e.g. [3], [1, 4-6, 9].
var citationGroupRe = regexp.MustCompile(`\[([\d\s,\-]+)\]`)

// Reconciler renumbers citations through an LLM completer and verifies the
// result. Invalid output is reported, never silently repaired.
type Reconciler struct {
	completer llm.Completer
	logger    zerolog.Logger
}

// New creates a reconciler backed by the given completer.
func New(completer llm.Completer, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		completer: completer,
		logger:    logger.With().Str("component", "citations").Logger(),
	}
}

// Result is the reconciled document plus what verification found.
type Result struct {
	// Document holds the renumbered narrative and bibliography.
	Document domain.ReviewDocument

	// CitationOrder lists distinct citation numbers in order of first
	// appearance in the narrative.
	CitationOrder []int

	// CitationsValid reports whether every marker resolves to an entry.
	CitationsValid bool
}

// Refine rewrites the document with numbered citations and a renumbered
// bibliography, then verifies the markers against the new bibliography.
func (r *Reconciler) Refine(ctx context.Context, doc *domain.ReviewDocument) (*Result, error) {
	content, err := r.completer.Complete(ctx, llm.UserPrompt("refine_citations", refinePrompt(doc)))
	if err != nil {
		return nil, fmt.Errorf("refine completion failed: %w", err)
	}

	narrative, bibliography := compose.SplitDraft(content)

	result := &Result{
		Document:       domain.ReviewDocument{Narrative: narrative, Bibliography: bibliography},
		CitationOrder:  CitationOrder(narrative),
		CitationsValid: VerifyCitations(narrative, bibliography),
	}

	if !result.CitationsValid {
		r.logger.Warn().
			Int("bibliography", len(bibliography)).
			Ints("citation_order", result.CitationOrder).
			Msg("refined narrative cites entries outside the bibliography")
	}
	return result, nil
}

// ExtractCitations returns every citation number in the text, in reading
// order, duplicates preserved. Hyphenated parts expand inclusively, so
// [2-4] yields 2, 3, 4. Malformed parts within a group are skipped.
func ExtractCitations(text string) []int {
	var numbers []int
	for _, group := range citationGroupRe.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(group[1], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if lo, hi, ok := parseRange(part); ok {
				for n := lo; n <= hi; n++ {
					numbers = append(numbers, n)
				}
				continue
			}
			if n, err := strconv.Atoi(part); err == nil {
				numbers = append(numbers, n)
			}
		}
	}
	return numbers
}

// CitationOrder returns the distinct citation numbers in order of first
// appearance in the text.
func CitationOrder(text string) []int {
	seen := make(map[int]struct{})
	var order []int
	for _, n := range ExtractCitations(text) {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		order = append(order, n)
	}
	return order
}

// VerifyCitations reports whether every citation number in the text lies in
// [1, len(bibliography)].
func VerifyCitations(text string, bibliography []string) bool {
	for _, n := range ExtractCitations(text) {
		if n < 1 || n > len(bibliography) {
			return false
		}
	}
	return true
}

// parseRange parses "lo-hi" with lo <= hi.
func parseRange(part string) (lo, hi int, ok bool) {
	first, second, found := strings.Cut(part, "-")
	if !found {
		return 0, 0, false
	}
	lo, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, 0, false
	}
	hi, err = strconv.Atoi(strings.TrimSpace(second))
	if err != nil || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

// refinePrompt renders the renumbering instructions with the draft
// narrative and its bibliography.
func refinePrompt(doc *domain.ReviewDocument) string {
	return fmt.Sprintf(`Revise this literature review so that every citation uses numbered references instead of author-date style.

Rules:
- Replace each author-date citation with a bracketed number, e.g. [1].
- Group adjacent citations: consecutive numbers become a range like [1-3], mixed groups become [1, 3-5, 7].
- Within a group, list numbers in ascending order.
- Number references in order of first citation in the text.
- Rewrite the References section with one numbered entry per line in the form: [1] Authors. (Year). Title. Journal.
- Do not add, remove, or reword any other content.

Review:

%s

References
----------
%s
`, doc.Narrative, doc.BibliographyText())
}
