package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ReviewRequest
		wantErr bool
	}{
		{name: "valid", req: ReviewRequest{Topic: "gene editing", MinReferences: 20}},
		{name: "empty topic", req: ReviewRequest{Topic: "  ", MinReferences: 20}, wantErr: true},
		{name: "zero references", req: ReviewRequest{Topic: "gene editing"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlanSearch(t *testing.T) {
	tests := []struct {
		minRefs    int
		phrases    int
		perPhrase  int
	}{
		{5, 2, 10},
		{19, 2, 10},
		{20, 16, 10},
		{30, 18, 10},
		{40, 24, 12},
		{50, 32, 14},
		{60, 35, 16},
		{80, 38, 18},
		{96, 42, 20},
		{120, 42, 20},
	}

	for _, tt := range tests {
		plan := PlanSearch(tt.minRefs)
		assert.Equal(t, tt.phrases, plan.NumPhrases, "phrases for min_refs=%d", tt.minRefs)
		assert.Equal(t, tt.perPhrase, plan.ResultsPerPhrase, "per-phrase for min_refs=%d", tt.minRefs)
	}
}

func TestSplitBibliography(t *testing.T) {
	entries := SplitBibliography("[1] A. (2020). T1. J1.\n\n[2] B. (2021). T2. J2.\n")
	assert.Equal(t, []string{"[1] A. (2020). T1. J1.", "[2] B. (2021). T2. J2."}, entries)

	assert.Nil(t, SplitBibliography("   \n  "))
}

func TestReviewDocumentRoundTrip(t *testing.T) {
	doc := ReviewDocument{
		Narrative:    "Some narrative [1].",
		Bibliography: []string{"[1] A. (2020). T. J."},
	}
	assert.Equal(t, "[1] A. (2020). T. J.", doc.BibliographyText())
	assert.Equal(t, doc.Bibliography, SplitBibliography(doc.BibliographyText()))
}
