package drafting

import (
	"fmt"
	"strings"

	"examforge/internal/research"
)

const systemPromptText = `You are an experienced medical educator writing board-style multiple-choice questions.

Rules:
- Write a single clinical vignette question on the requested topic at the requested difficulty.
- The vignette must be a realistic patient presentation: age, presentation, relevant history, examination findings, and labs where appropriate.
- Provide exactly five answer options, labeled A through E, homogeneous in category and similar in length.
- Exactly one option is correct. Distractors must be plausible and reflect real diagnostic or management errors.
- Explain why the correct answer is right, and for each wrong option explain why it is wrong.
- Close with 2-3 teaching pearls and a short quality checklist you applied.

Format your response with these labeled sections, in this order:
VIGNETTE:
LEAD-IN:
OPTION A:
OPTION B:
OPTION C:
OPTION D:
OPTION E:
CORRECT ANSWER: (single letter A-E)
EXPLANATION:
WHY A IS WRONG: (omit for the correct option; one section per wrong option)
WHY B IS WRONG:
WHY C IS WRONG:
WHY D IS WRONG:
WHY E IS WRONG:
PEARLS:
CHECKLIST:`

const systemPromptStructured = `You are an experienced medical educator writing board-style multiple-choice questions.

Rules:
- Write a single clinical vignette question on the requested topic at the requested difficulty.
- The vignette must be a realistic patient presentation: age, presentation, relevant history, examination findings, and labs where appropriate.
- Provide exactly five answer options, homogeneous in category and similar in length.
- Exactly one option is correct; set correct_index to its zero-based position.
- Give every option a rationale: why it is right for the keyed option, why it is wrong for the rest.
- Include 2-3 teaching pearls.

Respond with a single JSON object matching the provided schema.`

// buildUserMessage assembles the user prompt from the topic, difficulty,
// research context, and accumulated revision feedback.
func buildUserMessage(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Topic: %s\n", in.Topic)
	fmt.Fprintf(&b, "Difficulty: %s (%.2f on a 0-1 scale)\n", difficultyBand(in.Difficulty), in.Difficulty)

	b.WriteString("\nReference context:\n")
	b.WriteString(formatContext(in.Context))

	if len(in.History) > 0 {
		b.WriteString("\nEarlier attempts at this question were rejected. Do not repeat these mistakes:\n")
		for _, f := range in.History {
			fmt.Fprintf(&b, "%d. %s\n", f.Iteration, f.Trigger)
		}
	}

	return b.String()
}

// difficultyBand maps the 0-1 difficulty to a label the model can act on.
func difficultyBand(d float64) string {
	switch {
	case d < 0.34:
		return "foundational"
	case d < 0.67:
		return "intermediate"
	default:
		return "advanced"
	}
}

func formatContext(rc research.Context) string {
	snippets := rc.Snippets()
	if len(snippets) == 0 {
		return "None available. Rely on established clinical knowledge.\n"
	}

	var b strings.Builder
	for _, src := range rc.Sources {
		if len(src.Snippets) == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n", src.Source)
		for _, s := range src.Snippets {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return b.String()
}
