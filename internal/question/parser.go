package question

import (
	"sort"
	"strings"
)

// The section grammar. A response is expected to label each part with
// one of these markers; extraction is a single linear scan taking
// everything from a marker to the next known marker (or end of text).
// Matching is case-insensitive and tolerant of surrounding decoration
// ("## VIGNETTE", "**Vignette:**").
const (
	secVignette = "VIGNETTE"
	secLeadIn   = "LEAD-IN"
	secCorrect  = "CORRECT ANSWER"
	secExplain  = "EXPLANATION"
	secPearls   = "PEARLS"
	secCheck    = "CHECKLIST"
)

var optionLetters = []string{"A", "B", "C", "D", "E"}

// sectionAliases maps a canonical section name to the marker strings
// that introduce it.
var sectionAliases = map[string][]string{
	secVignette: {"VIGNETTE"},
	secLeadIn:   {"LEAD-IN", "LEAD IN"},
	secCorrect:  {"CORRECT ANSWER"},
	secExplain:  {"EXPLANATION"},
	secPearls:   {"PEARLS"},
	secCheck:    {"CHECKLIST"},
}

// Parse extracts a Draft from raw model output. It is total: it never
// fails, and any section missing from the text is left empty for the
// structural validator to judge. Detecting a broken draft is validation's
// job, not parsing's; a throwing parser would discard usable partials.
func Parse(raw string) Draft {
	text := stripCodeFences(raw)

	names := make(map[string][]string, len(sectionAliases))
	for k, v := range sectionAliases {
		names[k] = v
	}
	for _, l := range optionLetters {
		names["OPTION "+l] = []string{"OPTION " + l}
		names["WHY "+l] = []string{"WHY " + l + " IS WRONG", "WHY " + l + " IS INCORRECT"}
	}

	sections := scanSections(text, names)

	d := Draft{
		Stem:        sections[secVignette],
		LeadIn:      sections[secLeadIn],
		Explanation: sections[secExplain],
		Pearls:      splitItems(sections[secPearls]),
		Checklist:   splitItems(sections[secCheck]),
		RawText:     raw,
	}

	for _, l := range optionLetters {
		text, ok := sections["OPTION "+l]
		if !ok || text == "" {
			continue
		}
		d.Options = append(d.Options, Option{
			Text:      firstLine(text),
			Rationale: sections["WHY "+l],
		})
	}

	d.CorrectIndex, d.AmbiguousAnswer = resolveAnswer(sections[secCorrect], len(d.Options))

	return d
}

// marker is one located section marker occurrence.
type marker struct {
	name  string
	start int // index of the marker itself
	body  int // index just past the marker token
}

// scanSections locates the first occurrence of every known marker and
// assigns each section the text between its marker and the next one.
func scanSections(text string, names map[string][]string) map[string]string {
	upper := asciiUpper(text)

	var found []marker
	for name, aliases := range names {
		best := -1
		bodyAt := -1
		for _, alias := range aliases {
			if i := strings.Index(upper, alias); i >= 0 && (best < 0 || i < best) {
				best = i
				bodyAt = i + len(alias)
			}
		}
		if best >= 0 {
			found = append(found, marker{name: name, start: best, body: bodyAt})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })

	out := make(map[string]string, len(found))
	for i, m := range found {
		end := len(text)
		if i+1 < len(found) {
			end = found[i+1].start
		}
		out[m.name] = cleanSection(text[m.body:end])
	}
	return out
}

// asciiUpper uppercases ASCII letters only. Unlike strings.ToUpper it
// never changes the byte length of multibyte runes, so an offset into
// the result is a valid offset into s. All section markers are ASCII.
func asciiUpper(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'a' && c <= 'z' {
			if b == nil {
				b = []byte(s)
			}
			b[i] = c - 'a' + 'A'
		}
	}
	if b == nil {
		return s
	}
	return string(b)
}

// cleanSection trims marker decoration (colon, markdown emphasis,
// heading residue) and surrounding whitespace from a section body.
func cleanSection(s string) string {
	s = strings.TrimLeft(s, ":*#")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "**")
	s = strings.TrimSuffix(s, "##")
	return strings.TrimSpace(s)
}

// resolveAnswer maps the correct-answer section to a zero-based option
// index. A missing or out-of-range letter resolves to index 0 with the
// ambiguous flag set, so downstream validation rejects the draft rather
// than the parser guessing.
func resolveAnswer(section string, optionCount int) (int, bool) {
	for _, r := range section {
		switch {
		case r >= 'A' && r <= 'E':
			idx := int(r - 'A')
			if idx >= optionCount {
				return 0, true
			}
			return idx, false
		case r >= 'a' && r <= 'e':
			idx := int(r - 'a')
			if idx >= optionCount {
				return 0, true
			}
			return idx, false
		case r == ' ' || r == '\t' || r == '\n' || r == ':' || r == '*':
			continue
		default:
			return 0, true
		}
	}
	return 0, true
}

// firstLine returns the first non-empty line of a section. Option
// bodies sometimes carry trailing commentary; only the first line is
// the choice text.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// splitItems splits a bulleted or numbered section into items.
func splitItems(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•")
		if i := strings.IndexAny(line, ".)"); i > 0 && i <= 2 && isDigits(line[:i]) {
			line = line[i+1:]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// stripCodeFences removes a surrounding markdown code fence if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```markdown")
		s = strings.TrimPrefix(s, "```text")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
