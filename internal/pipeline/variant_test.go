package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examforge/internal/drafting"
	"examforge/internal/question"
	"examforge/internal/research"
)

func TestVariantValid(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		want    bool
	}{
		{"vignette", VariantVignette, true},
		{"structured", VariantStructured, true},
		{"empty", Variant(""), false},
		{"unknown", Variant("haiku"), false},
		{"case sensitive", Variant("Vignette"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.variant.Valid())
		})
	}
}

func TestVariantNormalize(t *testing.T) {
	assert.Equal(t, VariantVignette, Variant("").normalize())
	assert.Equal(t, VariantVignette, VariantVignette.normalize())
	assert.Equal(t, VariantStructured, VariantStructured.normalize())
	// Unknown variants pass through for validation to reject.
	assert.Equal(t, Variant("haiku"), Variant("haiku").normalize())
}

func TestVariantMode(t *testing.T) {
	assert.Equal(t, drafting.ModeText, VariantVignette.mode())
	assert.Equal(t, drafting.ModeStructured, VariantStructured.mode())
}

func TestVariantScorer(t *testing.T) {
	s := VariantVignette.scorer(18)
	require.NotNil(t, s)

	hs, ok := s.(*question.HeuristicScorer)
	require.True(t, ok)
	assert.Equal(t, 18, hs.PassThreshold)

	// The threshold flows through to acceptance.
	score := s.Score(question.Draft{}, research.Context{})
	assert.False(t, score.Passed)

	// Variants share the same judging; only drafting differs.
	assert.Equal(t, VariantVignette.scorer(18), VariantStructured.scorer(18))
}
