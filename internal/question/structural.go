package question

import "fmt"

// Structural check penalties. Hard failures make the draft unusable;
// soft ones only cost score.
const (
	penaltyMissingStem    = 25 // hard
	penaltyShortStem      = 10 // soft
	penaltyMissingLeadIn  = 20 // hard
	penaltyOptionCount    = 30 // hard
	penaltyBadAnswerKey   = 25 // hard
	penaltyNoExplanation  = 15 // soft
	minStemLength         = 80
	requiredOptionCount   = 5
	perfectStructureScore = 100
)

// Validate checks a draft against the question schema: vignette
// present, a lead-in, exactly five options, exactly one resolvable
// correct option, and an explanation. Pure function; repeated calls on
// the same draft return identical results.
func Validate(d Draft) ValidationResult {
	res := ValidationResult{Score: perfectStructureScore}

	if d.Stem == "" {
		res.fail(penaltyMissingStem, "vignette is missing")
	} else if len(d.Stem) < minStemLength {
		res.warn(penaltyShortStem, fmt.Sprintf("vignette is under %d characters", minStemLength))
	}

	if d.LeadIn == "" {
		res.fail(penaltyMissingLeadIn, "lead-in is missing")
	}

	if len(d.Options) != requiredOptionCount {
		res.fail(penaltyOptionCount, fmt.Sprintf("expected %d options, found %d", requiredOptionCount, len(d.Options)))
	}

	if d.AmbiguousAnswer {
		res.fail(penaltyBadAnswerKey, "answer key is ambiguous or missing")
	} else if d.CorrectIndex < 0 || d.CorrectIndex >= len(d.Options) {
		res.fail(penaltyBadAnswerKey, "answer key does not point at an option")
	}

	if d.Explanation == "" {
		res.warn(penaltyNoExplanation, "explanation is missing")
	}

	res.IsValid = len(res.Errors) == 0
	if res.Score < 0 {
		res.Score = 0
	}
	return res
}

func (r *ValidationResult) fail(penalty int, msg string) {
	r.Score -= penalty
	r.Errors = append(r.Errors, msg)
}

func (r *ValidationResult) warn(penalty int, msg string) {
	r.Score -= penalty
	r.Warnings = append(r.Warnings, msg)
}
