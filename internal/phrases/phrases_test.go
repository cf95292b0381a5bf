package phrases

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/litreview/internal/domain"
	"github.com/scriptoria/litreview/internal/llm"
)

// stubCompleter returns a canned response and records the prompts it saw.
type stubCompleter struct {
	response string
	err      error
	requests []llm.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	s.requests = append(s.requests, req)
	return s.response, s.err
}

func (s *stubCompleter) Provider() string { return "stub" }
func (s *stubCompleter) Model() string    { return "stub-model" }

func TestExpandPhrases(t *testing.T) {
	stub := &stubCompleter{response: "gene editing therapy\n\n  crispr delivery systems  \ngenome modification clinical\n"}
	client := New(stub, zerolog.Nop())

	phrases, err := client.ExpandPhrases(context.Background(), "CRISPR therapeutics", 3)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"gene editing therapy",
		"crispr delivery systems",
		"genome modification clinical",
	}, phrases)

	require.Len(t, stub.requests, 1)
	assert.Equal(t, "expand_phrases", stub.requests[0].Operation)
	assert.Contains(t, stub.requests[0].Messages[0].Content, "CRISPR therapeutics")
	assert.Contains(t, stub.requests[0].Messages[0].Content, "generate 3 alternative search phrases")
}

func TestExpandPhrasesTruncatesExtra(t *testing.T) {
	stub := &stubCompleter{response: "one\ntwo\nthree\nfour\nfive"}
	client := New(stub, zerolog.Nop())

	phrases, err := client.ExpandPhrases(context.Background(), "topic", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, phrases)
}

func TestExpandPhrasesShortResponseKept(t *testing.T) {
	stub := &stubCompleter{response: "only one phrase"}
	client := New(stub, zerolog.Nop())

	phrases, err := client.ExpandPhrases(context.Background(), "topic", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"only one phrase"}, phrases)
}

func TestExpandPhrasesCompleterError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("provider unavailable")}
	client := New(stub, zerolog.Nop())

	_, err := client.ExpandPhrases(context.Background(), "topic", 3)
	assert.Error(t, err)
}

func TestExtractKeywords(t *testing.T) {
	stub := &stubCompleter{response: "machine learning\nprotein folding\nneural networks\nbenchmarks\naccuracy\nextra line"}
	client := New(stub, zerolog.Nop())

	keywords, err := client.ExtractKeywords(context.Background(), "some manuscript text")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"machine learning", "protein folding", "neural networks", "benchmarks", "accuracy",
	}, keywords)
	assert.Equal(t, "extract_keywords", stub.requests[0].Operation)
}

func TestExtractKeywordsTooFew(t *testing.T) {
	stub := &stubCompleter{response: "alpha\nbeta\ngamma"}
	client := New(stub, zerolog.Nop())

	_, err := client.ExtractKeywords(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrContractViolation)
}

func TestBuildQueries(t *testing.T) {
	keywords := []string{"k0", "k1", "k2", "k3", "k4"}

	queries := BuildQueries(keywords)
	require.Len(t, queries, 12)

	assert.Equal(t, []string{"k0", "k1", "k2", "k3"}, queries[0])
	assert.Equal(t, []string{"k0", "k1"}, queries[1])
	assert.Equal(t, []string{"k1", "k2"}, queries[2])
	assert.Equal(t, []string{"k2", "k3", "k4"}, queries[11])

	for _, q := range queries {
		assert.NotEmpty(t, q)
	}
}

func TestBuildQueriesTooFewKeywords(t *testing.T) {
	assert.Nil(t, BuildQueries([]string{"a", "b"}))
}
