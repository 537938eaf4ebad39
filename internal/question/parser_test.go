package question

import (
	"strings"
	"testing"
)

const wellFormedResponse = `VIGNETTE: A 19-year-old man presents to the dermatology clinic with a six-month history of facial comedones, papules, and pustules. Examination shows open and closed comedones over the forehead and cheeks with scattered inflammatory papules. Vital signs are normal.

LEAD-IN: Which of the following is the most appropriate initial therapy?

OPTION A: Topical tretinoin
OPTION B: Oral isotretinoin
OPTION C: Oral prednisone
OPTION D: Topical ketoconazole
OPTION E: Intralesional triamcinolone

CORRECT ANSWER: A

EXPLANATION: Topical retinoids are first-line for comedonal and mild inflammatory acne. They normalize follicular keratinization and prevent new comedone formation.

WHY B IS WRONG: Oral isotretinoin is reserved for severe nodulocystic acne.
WHY C IS WRONG: Systemic corticosteroids have no role in routine acne.
WHY D IS WRONG: Ketoconazole treats fungal conditions, not acne vulgaris.
WHY E IS WRONG: Intralesional steroids target individual nodules only.

PEARLS:
- Topical retinoids are comedolytic.
- Combine with benzoyl peroxide to limit resistance.

CHECKLIST:
1. Vignette includes age and duration.
2. One unambiguous best answer.
`

func TestParse_WellFormed(t *testing.T) {
	d := Parse(wellFormedResponse)

	if !strings.HasPrefix(d.Stem, "A 19-year-old man") {
		t.Fatalf("unexpected stem: %q", d.Stem)
	}
	if d.LeadIn != "Which of the following is the most appropriate initial therapy?" {
		t.Fatalf("unexpected lead-in: %q", d.LeadIn)
	}
	if len(d.Options) != 5 {
		t.Fatalf("expected 5 options, got %d", len(d.Options))
	}
	if d.Options[0].Text != "Topical tretinoin" {
		t.Fatalf("unexpected option A: %q", d.Options[0].Text)
	}
	if d.Options[4].Text != "Intralesional triamcinolone" {
		t.Fatalf("unexpected option E: %q", d.Options[4].Text)
	}
	if d.CorrectIndex != 0 || d.AmbiguousAnswer {
		t.Fatalf("expected answer A resolved, got index=%d ambiguous=%v", d.CorrectIndex, d.AmbiguousAnswer)
	}
	if !strings.HasPrefix(d.Explanation, "Topical retinoids are first-line") {
		t.Fatalf("unexpected explanation: %q", d.Explanation)
	}
	if d.Options[1].Rationale == "" || !strings.Contains(d.Options[1].Rationale, "nodulocystic") {
		t.Fatalf("expected rationale for option B, got %q", d.Options[1].Rationale)
	}
	if d.Options[0].Rationale != "" {
		t.Fatalf("keyed option should have no distractor rationale, got %q", d.Options[0].Rationale)
	}
	if len(d.Pearls) != 2 {
		t.Fatalf("expected 2 pearls, got %v", d.Pearls)
	}
	if len(d.Checklist) != 2 || d.Checklist[0] != "Vignette includes age and duration." {
		t.Fatalf("unexpected checklist: %v", d.Checklist)
	}
	if d.RawText != wellFormedResponse {
		t.Fatal("raw text not preserved")
	}
}

func TestParse_NeverFails(t *testing.T) {
	inputs := []string{
		"",
		"   \n\n  ",
		"The model apologizes and refuses to answer.",
		"OPTION A",
		"CORRECT ANSWER: Q",
		strings.Repeat("VIGNETTE ", 1000),
		// Runes whose upper form has a different UTF-8 length must not
		// desync marker offsets from the original text.
		strings.Repeat("ɐ", 50) + "VIGNETTE: a patient presents",
		"ﬅ OPTION A: aspirin\nẞ CORRECT ANSWER: A",
	}
	for _, in := range inputs {
		d := Parse(in)
		if d.RawText != in {
			t.Fatalf("raw text not preserved for %q", in)
		}
	}
}

func TestParse_MultibytePrefixKeepsMarkerAlignment(t *testing.T) {
	d := Parse(strings.Repeat("ɐ", 50) + "VIGNETTE: a patient presents with fever")
	if d.Stem != "a patient presents with fever" {
		t.Fatalf("expected vignette body after multibyte prefix, got %q", d.Stem)
	}
}

func TestParse_NoMarkersYieldsEmptyDraft(t *testing.T) {
	d := Parse("Here is a nice paragraph about acne with no structure at all.")
	if d.Stem != "" || d.LeadIn != "" || len(d.Options) != 0 || d.Explanation != "" {
		t.Fatalf("expected empty draft, got %+v", d)
	}
	if !d.AmbiguousAnswer {
		t.Fatal("expected ambiguous answer on marker-less text")
	}
}

func TestParse_CaseInsensitiveAndDecorated(t *testing.T) {
	raw := "## Vignette:\nA 62-year-old woman presents with chest pain radiating to the jaw, diaphoresis, and nausea that began forty minutes ago while gardening.\n\n**Lead-in:** What is the next best step?\n\noption a: Aspirin\noption b: CT angiography\noption c: Observation\noption d: Stress test\noption e: Discharge\n\ncorrect answer: a\n\nexplanation: Immediate aspirin reduces mortality in suspected myocardial infarction.\n"
	d := Parse(raw)
	if !strings.HasPrefix(d.Stem, "A 62-year-old woman") {
		t.Fatalf("unexpected stem: %q", d.Stem)
	}
	if len(d.Options) != 5 {
		t.Fatalf("expected 5 options, got %d", len(d.Options))
	}
	if d.CorrectIndex != 0 || d.AmbiguousAnswer {
		t.Fatalf("expected answer a resolved, got index=%d ambiguous=%v", d.CorrectIndex, d.AmbiguousAnswer)
	}
}

func TestParse_CodeFenceStripped(t *testing.T) {
	fenced := "```markdown\n" + wellFormedResponse + "\n```"
	d := Parse(fenced)
	if len(d.Options) != 5 {
		t.Fatalf("expected 5 options, got %d", len(d.Options))
	}
	if d.CorrectIndex != 0 || d.AmbiguousAnswer {
		t.Fatal("expected answer resolved through code fence")
	}
}

func TestResolveAnswer(t *testing.T) {
	cases := []struct {
		section   string
		options   int
		wantIdx   int
		wantAmbig bool
	}{
		{"A", 5, 0, false},
		{"C", 5, 2, false},
		{"e", 5, 4, false},
		{"  B", 5, 1, false},
		{"", 5, 0, true},
		{"F", 5, 0, true},
		{"The answer is C", 5, 0, true}, // leading prose, not a bare letter
		{"D", 2, 0, true},               // letter beyond the option count
	}
	for _, tc := range cases {
		idx, ambig := resolveAnswer(tc.section, tc.options)
		if idx != tc.wantIdx || ambig != tc.wantAmbig {
			t.Errorf("resolveAnswer(%q, %d) = (%d, %v), want (%d, %v)",
				tc.section, tc.options, idx, ambig, tc.wantIdx, tc.wantAmbig)
		}
	}
}

func TestParse_PartialDraftKeepsWhatItFound(t *testing.T) {
	raw := "VIGNETTE: A 45-year-old presents with fatigue and polyuria over the last three months, with a strong family history of diabetes.\n\nOPTION A: Metformin\nOPTION B: Insulin\n"
	d := Parse(raw)
	if d.Stem == "" {
		t.Fatal("expected stem to survive a partial response")
	}
	if len(d.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(d.Options))
	}
	if !d.AmbiguousAnswer {
		t.Fatal("expected ambiguous answer with no answer key")
	}
}
