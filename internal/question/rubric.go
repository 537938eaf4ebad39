package question

import (
	"math"
	"strings"

	"examforge/internal/research"
)

// Rubric dimension names.
const (
	DimClinicalDetail    = "clinical_detail"
	DimOptionHomogeneity = "option_homogeneity"
	DimExplanation       = "explanation"
	DimLeadIn            = "lead_in"
	DimRationales        = "rationale_coverage"
)

// DefaultPassThreshold is the rubric total a draft needs for acceptance.
const DefaultPassThreshold = 20

// defaultClinicalKeywords is the presence set behind the clinical-detail
// dimension. One point per keyword family found in the vignette, capped
// at five. A deliberately crude proxy for vignette richness; the Scorer
// interface exists precisely so this can be swapped for a model-graded
// rubric later.
var defaultClinicalKeywords = []string{
	"year-old", "presents", "history", "examination",
	"vital", "laboratory", "temperature", "blood pressure",
}

// Scorer grades a draft on the acceptance rubric. Implementations must
// keep every dimension in [0,5] and the total in [0,25], and must score
// a longer, more complete explanation no lower than a shorter one with
// everything else equal.
type Scorer interface {
	Score(d Draft, rc research.Context) RubricScore
}

// HeuristicScorer is the built-in keyword/length rubric.
type HeuristicScorer struct {
	// PassThreshold is the minimum passing total. Zero means
	// DefaultPassThreshold.
	PassThreshold int

	// Keywords overrides the clinical-detail presence set.
	Keywords []string
}

func (s *HeuristicScorer) Score(d Draft, rc research.Context) RubricScore {
	dims := map[string]int{
		DimClinicalDetail:    s.scoreClinicalDetail(d, rc),
		DimOptionHomogeneity: scoreHomogeneity(d.Options),
		DimExplanation:       scoreExplanation(d.Explanation),
		DimLeadIn:            scoreLeadIn(d.LeadIn),
		DimRationales:        scoreRationales(d),
	}

	total := 0
	for _, v := range dims {
		total += v
	}

	threshold := s.PassThreshold
	if threshold == 0 {
		threshold = DefaultPassThreshold
	}

	return RubricScore{
		Dimensions: dims,
		Total:      total,
		Passed:     total >= threshold,
	}
}

// scoreClinicalDetail counts keyword families present in the vignette,
// one point each, capped at 5. Snippet terms from the research context
// count alongside the fixed set so a topic-specific vignette is not
// penalized for skipping generic phrasing.
func (s *HeuristicScorer) scoreClinicalDetail(d Draft, rc research.Context) int {
	keywords := s.Keywords
	if len(keywords) == 0 {
		keywords = defaultClinicalKeywords
	}

	stem := strings.ToLower(d.Stem)
	score := 0
	for _, kw := range keywords {
		if strings.Contains(stem, kw) {
			score++
		}
	}

	if score < 5 && snippetOverlap(stem, rc) {
		score++
	}

	return clampDim(score)
}

// snippetOverlap reports whether any research snippet shares a
// reasonably rare word with the vignette.
func snippetOverlap(stem string, rc research.Context) bool {
	for _, src := range rc.Sources {
		for _, snip := range src.Snippets {
			for _, w := range strings.Fields(strings.ToLower(snip)) {
				if len(w) >= 8 && strings.Contains(stem, w) {
					return true
				}
			}
		}
	}
	return false
}

// scoreHomogeneity maps option-length spread to 0-5. Options of similar
// length give away nothing; a single long outlier is a classic tell.
func scoreHomogeneity(options []Option) int {
	if len(options) < 2 {
		return 0
	}

	mean := 0.0
	for _, o := range options {
		mean += float64(len(o.Text))
	}
	mean /= float64(len(options))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, o := range options {
		dev := float64(len(o.Text)) - mean
		variance += dev * dev
	}
	variance /= float64(len(options))

	cv := math.Sqrt(variance) / mean
	return clampDim(5 - int(cv*10))
}

// scoreExplanation maps explanation length to 0-5, monotonically.
func scoreExplanation(explanation string) int {
	if explanation == "" {
		return 0
	}
	return clampDim(1 + len(explanation)/100)
}

func scoreLeadIn(leadIn string) int {
	if leadIn == "" {
		return 0
	}
	score := 3
	if strings.HasSuffix(strings.TrimSpace(leadIn), "?") {
		score++
	}
	if len(leadIn) <= 120 {
		score++
	}
	return clampDim(score)
}

// scoreRationales counts distractors that carry a rationale.
func scoreRationales(d Draft) int {
	covered := 0
	for i, o := range d.Options {
		if i == d.CorrectIndex {
			continue
		}
		if o.Rationale != "" {
			covered++
		}
	}
	if covered >= 4 {
		return 5
	}
	return clampDim(covered)
}

func clampDim(v int) int {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}
