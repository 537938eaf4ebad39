// Package pipeline runs the bounded draft-validate-score refinement
// loop that turns a topic into a quality-scored exam question.
package pipeline

import (
	"fmt"
	"time"

	"examforge/internal/question"
)

// Request describes one generation call. Immutable once created.
type Request struct {
	// Topic is the subject of the question. Required.
	Topic string `json:"topic"`

	// Difficulty is the target difficulty in [0,1].
	Difficulty float64 `json:"difficulty"`

	// Variant selects the pipeline strategy. Zero value means
	// VariantVignette.
	Variant Variant `json:"variant"`

	// UseCache enables the result cache for this request.
	UseCache bool `json:"use_cache"`
}

// IterationRecord captures one full draft-validate-score cycle.
// The record sequence for a run is append-only; indices start at 1 and
// increase monotonically.
type IterationRecord struct {
	Index      int                       `json:"index"`
	Draft      question.Draft            `json:"draft"`
	Validation question.ValidationResult `json:"validation"`
	Rubric     question.RubricScore      `json:"rubric"`

	// Trigger records why the next revision ran: the first validation
	// error, or the weakest rubric dimension. Empty on the accepted
	// iteration.
	Trigger string `json:"trigger"`
}

// Result is the terminal artifact of one generation run.
type Result struct {
	// FinalDraft is the accepted draft, or the best-scoring draft when
	// the iteration budget ran out.
	FinalDraft question.Draft `json:"final_draft"`

	// Iterations is the full refinement history, in order.
	Iterations []IterationRecord `json:"iterations"`

	// FinalIteration is the Index of the iteration whose draft became
	// FinalDraft. On budget exhaustion this can be earlier than the
	// last iteration.
	FinalIteration int `json:"final_iteration"`

	// Accepted is true when FinalDraft passed both validation and the
	// rubric threshold.
	Accepted bool `json:"accepted"`

	// CacheHit is true when this result came from the cache.
	CacheHit bool `json:"cache_hit"`

	// TotalDuration is wall time for the run (zero on a cache hit).
	TotalDuration time.Duration `json:"total_duration"`
}

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	// KindInvalidRequest means the request itself was malformed.
	KindInvalidRequest ErrorKind = "invalid_request"

	// KindModel means the model client failed after exhausting its
	// retry and fallback chains.
	KindModel ErrorKind = "model"

	// KindEmptyDraft means the first drafting pass produced no usable
	// content at all.
	KindEmptyDraft ErrorKind = "empty_draft"

	// KindCancelled means the caller's context was cancelled mid-run.
	KindCancelled ErrorKind = "cancelled"
)

// Error is a typed pipeline failure.
type Error struct {
	Kind ErrorKind

	// Iteration is the 1-based iteration that failed, 0 when the
	// failure preceded drafting.
	Iteration int

	Err error
}

func (e *Error) Error() string {
	if e.Iteration > 0 {
		return fmt.Sprintf("pipeline %s (iteration %d): %v", e.Kind, e.Iteration, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("pipeline %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("pipeline %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }
