package pipeline

import (
	"examforge/internal/drafting"
	"examforge/internal/question"
)

// Variant selects a pipeline strategy: how the model is prompted and
// how its response is decoded. All variants run through the same
// controller and rubric; there is exactly one refinement loop.
type Variant string

const (
	// VariantVignette prompts for the labeled section format and
	// parses it. The default.
	VariantVignette Variant = "vignette"

	// VariantStructured uses schema-constrained JSON output.
	VariantStructured Variant = "structured"
)

// Valid reports whether v names a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantVignette, VariantStructured:
		return true
	}
	return false
}

// normalize maps the zero value to the default variant.
func (v Variant) normalize() Variant {
	if v == "" {
		return VariantVignette
	}
	return v
}

// mode returns the drafting mode for this variant.
func (v Variant) mode() drafting.Mode {
	if v == VariantStructured {
		return drafting.ModeStructured
	}
	return drafting.ModeText
}

// scorer builds the rubric scorer for a run. Variants differ in how a
// draft is produced, not in how it is judged, so they share one
// heuristic scorer; Deps.Scorer is the swap point for a different one.
func (v Variant) scorer(threshold int) question.Scorer {
	return &question.HeuristicScorer{PassThreshold: threshold}
}
