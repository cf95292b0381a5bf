// Package selection merges the paper collections produced by the fetch
// clients into the set the composer will draft from: exact topic matches are
// always kept, the remainder is ranked by an LLM down to the target size.
package selection

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/llm"
)

// Aggregator merges, deduplicates, and ranks paper collections.
type Aggregator struct {
	completer llm.Completer
	logger    zerolog.Logger
}

// New creates an aggregator backed by the given completer.
func New(completer llm.Completer, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		completer: completer,
		logger:    logger.With().Str("component", "selection").Logger(),
	}
}

// candidate freezes one ranking candidate. The prompt refers to candidates
// by slice position; the ID ties log lines and any later lookup back to the
// same record even after the set is reordered.
type candidate struct {
	ID    uuid.UUID
	Paper domain.Paper
}

// Select merges the metadata and scholar collections (metadata first),
// deduplicates by normalized title, and reduces the set to at most target
// papers: exact topic matches are kept unconditionally, the rest are ranked
// by the completer even when they all fit within the target, so their
// order reflects assessed relevance rather than merge order. A ranking
// response that cannot be used degrades to "no ranked papers" rather than
// failing the run; only context cancellation is returned as an error.
func (a *Aggregator) Select(ctx context.Context, metadata, scholar []domain.Paper, topic string, target int) ([]domain.Paper, error) {
	combined := domain.DedupeByTitle(append(append([]domain.Paper{}, metadata...), scholar...))

	exact, rest := partitionExact(combined, topic)
	a.logger.Debug().
		Int("combined", len(combined)).
		Int("exact", len(exact)).
		Int("target", target).
		Msg("aggregated paper collections")

	remaining := target - len(exact)
	if remaining <= 0 || len(rest) == 0 {
		return domain.DedupeByTitle(exact), nil
	}

	candidates := make([]candidate, len(rest))
	for i, p := range rest {
		candidates[i] = candidate{ID: uuid.New(), Paper: p}
	}

	ranked, err := a.rank(ctx, candidates, topic, remaining)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn().Err(err).Msg("ranking failed, keeping exact matches only")
		ranked = nil
	}

	return domain.DedupeByTitle(append(exact, ranked...)), nil
}

// rank asks the completer to score every candidate and returns the kept
// papers in ascending rank order, truncated to remaining.
func (a *Aggregator) rank(ctx context.Context, candidates []candidate, topic string, remaining int) ([]domain.Paper, error) {
	content, err := a.completer.Complete(ctx, llm.UserPrompt("rank_papers", rankPrompt(candidates, topic, remaining)))
	if err != nil {
		return nil, fmt.Errorf("ranking completion failed: %w", err)
	}

	type scored struct {
		index int
		value int
	}

	seen := make(map[int]struct{})
	var kept []scored
	for _, line := range strings.Split(content, "\n") {
		index, value, ok := parseRankLine(line, len(candidates), remaining)
		if !ok {
			continue
		}
		if _, dup := seen[index]; dup {
			continue
		}
		seen[index] = struct{}{}
		if value == 0 {
			continue
		}
		kept = append(kept, scored{index: index, value: value})
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("ranking response contained no usable lines")
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].value < kept[j].value })
	if len(kept) > remaining {
		kept = kept[:remaining]
	}

	papers := make([]domain.Paper, len(kept))
	for i, s := range kept {
		papers[i] = candidates[s.index].Paper
	}
	return papers, nil
}

// parseRankLine parses one "row:value" response line. Lines that are
// malformed or out of range are dropped, not errors.
func parseRankLine(line string, numCandidates, remaining int) (index, value int, ok bool) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	value, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if index < 0 || index >= numCandidates {
		return 0, 0, false
	}
	if value < 0 || value > remaining {
		return 0, 0, false
	}
	return index, value, true
}

// rankPrompt renders the scoring instructions and the numbered candidate
// rows. Rows carry title and abstract only; that is what the scorer needs.
func rankPrompt(candidates []candidate, topic string, remaining int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are selecting papers for a literature review on this topic: %s

Below are %d candidate papers, one per row, numbered from 0.
Assign every row a value:
- 0 means exclude the paper from the review.
- Values 1 to %d rank the included papers, 1 being the most relevant. Use each value at most once.
Prioritize papers published within the last 10 years when relevance is comparable.
Respond with one line per row, in the format row:value, and nothing else.

`, topic, len(candidates), remaining)

	for i, c := range candidates {
		fmt.Fprintf(&b, "%d: %s\n", i, c.Paper.Title)
		if c.Paper.Date != "" {
			fmt.Fprintf(&b, "Date: %s\n", c.Paper.Date)
		}
		if c.Paper.Abstract != "" {
			fmt.Fprintf(&b, "Abstract: %s\n", c.Paper.Abstract)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// partitionExact splits papers into exact topic matches and the rest. A
// paper matches exactly when every lowercase whitespace token of the topic
// appears in its title, or every token appears in its abstract.
func partitionExact(papers []domain.Paper, topic string) (exact, rest []domain.Paper) {
	tokens := strings.Fields(strings.ToLower(topic))
	for _, p := range papers {
		if matchesAll(strings.ToLower(p.Title), tokens) || matchesAll(strings.ToLower(p.Abstract), tokens) {
			exact = append(exact, p)
			continue
		}
		rest = append(rest, p)
	}
	return exact, rest
}

func matchesAll(text string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !strings.Contains(text, tok) {
			return false
		}
	}
	return true
}
