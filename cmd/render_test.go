package cmd

import (
	"strings"
	"testing"

	"examforge/internal/pipeline"
	"examforge/internal/question"
)

func TestRenderRunSummary_ShowsRubricOfFinalIteration(t *testing.T) {
	res := &pipeline.Result{
		Iterations: []pipeline.IterationRecord{
			{Index: 1, Rubric: question.RubricScore{
				Total:      18,
				Dimensions: map[string]int{question.DimExplanation: 4},
			}},
			{Index: 2, Rubric: question.RubricScore{
				Total:      6,
				Dimensions: map[string]int{question.DimExplanation: 1},
			}},
		},
		FinalIteration: 1,
	}

	out := renderRunSummary(res)
	if !strings.Contains(out, "18/25") {
		t.Fatalf("expected the final draft's rubric total, got:\n%s", out)
	}
	if strings.Contains(out, "6/25") {
		t.Fatalf("last iteration's rubric leaked into the summary:\n%s", out)
	}
}

func TestRenderRunSummary_Accepted(t *testing.T) {
	res := &pipeline.Result{
		Accepted: true,
		Iterations: []pipeline.IterationRecord{
			{Index: 1, Rubric: question.RubricScore{
				Total:      23,
				Dimensions: map[string]int{question.DimLeadIn: 5},
			}},
		},
		FinalIteration: 1,
	}

	out := renderRunSummary(res)
	if !strings.Contains(out, "accepted after 1 iteration") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "23/25") {
		t.Fatalf("expected rubric table, got:\n%s", out)
	}
}
