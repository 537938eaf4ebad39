package cmd

import (
	"fmt"
	"sort"
	"strings"

	"charm.land/lipgloss/v2"

	"examforge/internal/pipeline"
	"examforge/internal/progress"
	"examforge/internal/question"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#14B8A6"))
	correctStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22C55E"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F43F5E"))
)

// renderEvent formats one progress event for --watch output.
func renderEvent(ev progress.Event) string {
	status := string(ev.Status)
	if ev.Status == progress.StatusError {
		status = errorStyle.Render(status)
	}
	line := fmt.Sprintf("%s %-8s %s", ev.Timestamp.Format("15:04:05"), ev.Stage, status)
	if ev.Message != "" {
		line += dimStyle.Render("  " + ev.Message)
	}
	return line
}

// renderResult formats the final pipeline result.
func renderResult(res *pipeline.Result) string {
	var b strings.Builder
	d := res.FinalDraft

	b.WriteString(headingStyle.Render("VIGNETTE") + "\n")
	b.WriteString(d.Stem + "\n\n")
	b.WriteString(d.LeadIn + "\n\n")

	for i, opt := range d.Options {
		label := fmt.Sprintf("%c. %s", 'A'+i, opt.Text)
		if i == d.CorrectIndex {
			label = correctStyle.Render(label + "  ✓")
		}
		b.WriteString(label + "\n")
	}

	if d.Explanation != "" {
		b.WriteString("\n" + headingStyle.Render("EXPLANATION") + "\n")
		b.WriteString(d.Explanation + "\n")
	}

	if len(d.Pearls) > 0 {
		b.WriteString("\n" + headingStyle.Render("PEARLS") + "\n")
		for _, p := range d.Pearls {
			b.WriteString("- " + p + "\n")
		}
	}

	b.WriteString("\n" + renderRunSummary(res))
	return b.String()
}

func renderRunSummary(res *pipeline.Result) string {
	var b strings.Builder

	switch {
	case res.CacheHit:
		b.WriteString(dimStyle.Render("cache hit") + "\n")
	case res.Accepted:
		fmt.Fprintf(&b, "accepted after %d iteration(s) in %s\n",
			len(res.Iterations), res.TotalDuration.Round(1e8))
	default:
		b.WriteString(errorStyle.Render(fmt.Sprintf(
			"not accepted; best of %d iteration(s)", len(res.Iterations))) + "\n")
	}

	// Show the rubric of the iteration the final draft came from, which
	// on exhaustion is the best one rather than the last.
	for _, rec := range res.Iterations {
		if rec.Index == res.FinalIteration && len(rec.Rubric.Dimensions) > 0 {
			b.WriteString(renderRubric(rec.Rubric))
			break
		}
	}
	return b.String()
}

func renderRubric(r question.RubricScore) string {
	names := make([]string, 0, len(r.Dimensions))
	for name := range r.Dimensions {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %-20s %d/5\n", name, r.Dimensions[name])
	}
	fmt.Fprintf(&b, "  %-20s %d/25\n", "total", r.Total)
	return dimStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}
