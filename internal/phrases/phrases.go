// Package phrases expands a research topic into alternative search phrases
// and extracts ranked keywords from manuscript text.
package phrases

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/llm"
)

// keywordCount is the number of keywords the extractor must return.
const keywordCount = 5

// Client generates search phrases and keywords through an LLM completer.
type Client struct {
	completer llm.Completer
	logger    zerolog.Logger
}

// New creates a phrase client backed by the given completer.
func New(completer llm.Completer, logger zerolog.Logger) *Client {
	return &Client{
		completer: completer,
		logger:    logger.With().Str("component", "phrases").Logger(),
	}
}

// ExpandPhrases asks the completer for n alternative search phrases for the
// topic, one per line. Lines are trimmed, blanks dropped, and the result is
// truncated to n. Fewer than n phrases is not an error; the caller searches
// with whatever came back.
func (c *Client) ExpandPhrases(ctx context.Context, topic string, n int) ([]string, error) {
	prompt := fmt.Sprintf(`Given this research topic, generate %d alternative search phrases that would help find relevant papers.
The phrases should be similar in meaning but use different terminology or focus on different aspects.
Each phrase should be 3-6 words long. Try to include commonly used phrases within the field that are relevant to the topic.
Try to use phrases that reflect different aspects of the main topic but still use common enough keywords to get results from the search.
Return exactly %d phrases, one per line.

Research Topic: %s`, n, n, topic)

	content, err := c.completer.Complete(ctx, llm.UserPrompt("expand_phrases", prompt))
	if err != nil {
		return nil, fmt.Errorf("phrase expansion failed: %w", err)
	}

	phrases := splitLines(content)
	if len(phrases) > n {
		phrases = phrases[:n]
	}

	c.logger.Debug().Int("requested", n).Int("returned", len(phrases)).Msg("expanded topic into phrases")
	return phrases, nil
}

// ExtractKeywords asks the completer for the five most important keywords in
// the manuscript, ordered by importance with the primary topic first. Fewer
// than five lines back is a contract violation: the caller cannot build its
// fixed query combinations from a partial set, so this fails fast instead of
// padding.
func (c *Client) ExtractKeywords(ctx context.Context, manuscript string) ([]string, error) {
	prompt := fmt.Sprintf(`Given this manuscript text, identify the %d most important keywords or phrases that best describe
the core topic and methodology. The first keyword should be the primary topic.
Order them from most important to least important.
Keywords/phrases should be 1 or 2 words only.
Return exactly %d keywords, one per line.

Text: %s`, keywordCount, keywordCount, manuscript)

	content, err := c.completer.Complete(ctx, llm.UserPrompt("extract_keywords", prompt))
	if err != nil {
		return nil, fmt.Errorf("keyword extraction failed: %w", err)
	}

	keywords := splitLines(content)
	if len(keywords) < keywordCount {
		return nil, domain.NewContractViolationError("keyword extractor",
			fmt.Sprintf("expected %d keywords, got %d", keywordCount, len(keywords)))
	}

	return keywords[:keywordCount], nil
}

// BuildQueries produces the fixed set of keyword combinations used to probe
// a local corpus: the primary keyword paired with supporting keywords in
// twelve arrangements. Keywords must come from ExtractKeywords (exactly
// five, primary first).
func BuildQueries(keywords []string) [][]string {
	if len(keywords) < keywordCount {
		return nil
	}

	primary := keywords[0]
	return [][]string{
		{primary, keywords[1], keywords[2], keywords[3]},
		{primary, keywords[1]},
		{keywords[1], keywords[2]},
		{primary, keywords[1], keywords[2]},
		{primary, keywords[1], keywords[3]},
		{primary, keywords[1], keywords[4]},
		{primary, keywords[2], keywords[3]},
		{primary, keywords[3], keywords[4]},
		{keywords[1], keywords[2], keywords[3]},
		{keywords[1], keywords[2], keywords[4]},
		{keywords[1], keywords[3], keywords[4]},
		{keywords[2], keywords[3], keywords[4]},
	}
}

// splitLines splits completion output into trimmed, non-empty lines.
func splitLines(content string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
