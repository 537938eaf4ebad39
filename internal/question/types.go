package question

// Option is one answer choice of a multiple-choice question.
type Option struct {
	// Text is the choice as shown to the examinee.
	Text string

	// Rationale explains why this choice is wrong (distractors) or
	// right (the keyed option). May be empty on a partial parse.
	Rationale string
}

// Draft is one candidate question produced by a single drafting pass.
// A Draft is not guaranteed to be well-formed: a degraded model response
// yields empty fields or fewer than five options, and the structural
// validator decides whether the draft is usable.
type Draft struct {
	// Stem is the clinical vignette.
	Stem string

	// LeadIn is the question posed after the vignette
	// ("Which of the following is the most likely diagnosis?").
	LeadIn string

	// Options are the answer choices, in A..E order. Exactly five on a
	// structurally valid draft.
	Options []Option

	// CorrectIndex is the zero-based index of the keyed option.
	CorrectIndex int

	// AmbiguousAnswer is set when the answer key could not be resolved
	// to a single letter A-E. CorrectIndex defaults to 0 in that case
	// and validation rejects the draft.
	AmbiguousAnswer bool

	// Explanation is the worked rationale for the keyed option.
	Explanation string

	// Pearls are short teaching points extracted from the response.
	Pearls []string

	// Checklist is the model's own quality checklist, kept for review.
	Checklist []string

	// RawText is the unmodified model output this draft was parsed from.
	RawText string
}

// ValidationResult is the outcome of a structural validation pass.
// Recomputed from scratch on every iteration, never mutated in place.
type ValidationResult struct {
	// IsValid is true only if no hard-fail check triggered.
	IsValid bool

	// Errors lists hard failures (draft unusable as-is).
	Errors []string

	// Warnings lists soft defects that cost score but keep the draft usable.
	Warnings []string

	// Score is the structural score, 0-100.
	Score int
}

// RubricScore is the heuristic quality score of a draft, independent of
// structural validity.
type RubricScore struct {
	// Dimensions maps dimension name to its 0-5 score.
	Dimensions map[string]int

	// Total is the sum of all dimensions, 0-25.
	Total int

	// Passed is true when Total meets the acceptance threshold.
	Passed bool
}

// WeakestDimension returns the lowest-scoring rubric dimension, ties
// broken alphabetically so revision triggers are deterministic.
func (r RubricScore) WeakestDimension() string {
	weakest := ""
	low := 6
	for name, score := range r.Dimensions {
		if score < low || (score == low && (weakest == "" || name < weakest)) {
			weakest = name
			low = score
		}
	}
	return weakest
}
