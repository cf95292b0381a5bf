package citations

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

type stubCompleter struct {
	response string
	err      error
	prompts  []string
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	s.prompts = append(s.prompts, req.Messages[0].Content)
	return s.response, s.err
}

func (s *stubCompleter) Provider() string { return "stub" }
func (s *stubCompleter) Model() string    { return "stub-model" }

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{name: "single", text: "As shown [3].", want: []int{3}},
		{name: "list", text: "Several works [1, 4, 9].", want: []int{1, 4, 9}},
		{name: "range", text: "Early studies [2-4].", want: []int{2, 3, 4}},
		{name: "mixed group", text: "See [1, 3-5, 7].", want: []int{1, 3, 4, 5, 7}},
		{name: "duplicates preserved", text: "[2] and again [2].", want: []int{2, 2}},
		{name: "multiple groups in order", text: "[5] then [1-2].", want: []int{5, 1, 2}},
		{name: "no citations", text: "Nothing bracketed here.", want: nil},
		{name: "non numeric bracket ignored", text: "An aside [sic] and [3].", want: []int{3}},
		{name: "inverted range skipped", text: "[5-2] but [1].", want: []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCitations(tt.text))
		})
	}
}

func TestCitationOrder(t *testing.T) {
	assert.Equal(t, []int{5, 1, 2, 3}, CitationOrder("[5] then [1-3] then [2] and [5]."))
	assert.Nil(t, CitationOrder("no markers"))
}

func TestVerifyCitations(t *testing.T) {
	bib := []string{"one", "two", "three"}

	assert.True(t, VerifyCitations("[1] and [2-3].", bib))
	assert.True(t, VerifyCitations("no citations at all", bib))
	assert.False(t, VerifyCitations("[4] is out of range.", bib))
	assert.False(t, VerifyCitations("[0] is below range.", bib))
	assert.False(t, VerifyCitations("[1]", nil))
}

func TestRefine(t *testing.T) {
	stub := &stubCompleter{response: `Numbered claims [1] and more [2-3].

References
----------
[1] Smith J. (2021). First. Journal.
[2] Doe J. (2020). Second. Journal.
[3] Roe R. (2019). Third. Journal.
`}
	reconciler := New(stub, zerolog.Nop())

	doc := &domain.ReviewDocument{
		Narrative:    "Claims (Smith, 2021) and more (Doe, 2020; Roe, 2019).",
		Bibliography: []string{"Smith J. (2021). First. Journal."},
	}

	result, err := reconciler.Refine(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "Numbered claims [1] and more [2-3].", result.Document.Narrative)
	require.Len(t, result.Document.Bibliography, 3)
	assert.Equal(t, []int{1, 2, 3}, result.CitationOrder)
	assert.True(t, result.CitationsValid)

	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "numbered references")
	assert.Contains(t, stub.prompts[0], "Claims (Smith, 2021)")
	assert.Contains(t, stub.prompts[0], "Smith J. (2021). First. Journal.")
}

func TestRefineInvalidCitationsSignalled(t *testing.T) {
	stub := &stubCompleter{response: `Out of range [7].

References
----------
[1] Only entry.
`}
	reconciler := New(stub, zerolog.Nop())

	result, err := reconciler.Refine(context.Background(), &domain.ReviewDocument{Narrative: "x"})
	require.NoError(t, err)

	assert.False(t, result.CitationsValid)
	assert.Equal(t, []int{7}, result.CitationOrder)
	assert.Equal(t, "Out of range [7].", result.Document.Narrative)
}

func TestRefineCompleterError(t *testing.T) {
	reconciler := New(&stubCompleter{err: errors.New("provider down")}, zerolog.Nop())

	_, err := reconciler.Refine(context.Background(), &domain.ReviewDocument{Narrative: "x"})
	assert.Error(t, err)
}
