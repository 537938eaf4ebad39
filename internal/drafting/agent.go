// Package drafting turns a topic plus research context into a candidate
// question by prompting the model client and parsing its output.
package drafting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"examforge/internal/llm"
	"examforge/internal/question"
	"examforge/internal/research"
)

// Mode selects how the model is asked to shape its response.
type Mode string

const (
	// ModeText requests the labeled section format and parses it.
	ModeText Mode = "text"

	// ModeStructured requests schema-constrained JSON output.
	ModeStructured Mode = "structured"
)

// Feedback is one prior iteration's rejection, fed back into the prompt
// so the model sees what already failed.
type Feedback struct {
	Iteration int
	Trigger   string
}

// Input is everything one drafting pass needs.
type Input struct {
	Topic      string
	Difficulty float64 // 0-1
	Mode       Mode
	Context    research.Context
	History    []Feedback
}

// Config controls the drafting agent.
type Config struct {
	// MaxTokens is the completion budget. Full vignettes with
	// per-option rationales need room.
	MaxTokens int

	// Temperature for drafting. Revision rounds reuse it.
	Temperature float64

	// Timeout bounds one drafting call including the provider's
	// retry and fallback chain.
	Timeout time.Duration
}

// DefaultConfig returns the standard drafting configuration.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   3072,
		Temperature: 0.7,
		Timeout:     120 * time.Second,
	}
}

// maxRawExcerpt bounds how much raw model text an ErrEmptyDraft carries.
const maxRawExcerpt = 500

// ErrEmptyDraft reports a response with no usable content at all: no
// vignette, no options, no explanation. The iteration that produced it
// fails immediately rather than being revised.
type ErrEmptyDraft struct {
	// RawExcerpt is the first maxRawExcerpt bytes of the model output.
	RawExcerpt string
}

func (e *ErrEmptyDraft) Error() string {
	return fmt.Sprintf("model response contained no usable question content: %q", e.RawExcerpt)
}

// Agent drafts candidate questions through an llm.Provider.
type Agent struct {
	provider llm.Provider
	config   Config
}

// New creates a drafting agent.
func New(provider llm.Provider, cfg Config) *Agent {
	return &Agent{provider: provider, config: cfg}
}

// Draft produces one candidate question. The returned draft may be
// structurally invalid; only a semantically empty response is an error.
func (a *Agent) Draft(ctx context.Context, in Input) (*question.Draft, error) {
	purpose := "draft"
	if len(in.History) > 0 {
		purpose = "revise"
	}
	ctx = llm.WithPurpose(ctx, purpose)

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	req := llm.Request{
		System: systemPromptText,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(in)},
		},
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	}
	if in.Mode == ModeStructured {
		req.System = systemPromptStructured
		req.Schema = QuestionSchema
	}

	resp, err := a.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("drafting call failed: %w", err)
	}

	// A blank completion is fatal for the iteration. A non-empty response
	// with missing or mangled sections is not: it parses into a degraded
	// draft and the validator drives the revision cycle.
	if strings.TrimSpace(resp.Text()) == "" {
		return nil, &ErrEmptyDraft{RawExcerpt: excerpt(resp.Text())}
	}

	var d question.Draft
	if in.Mode == ModeStructured {
		d, err = decodeStructured(resp.Content)
		if err != nil {
			return nil, err
		}
		d.RawText = string(resp.Content)
	} else {
		d = question.Parse(resp.Text())
	}

	return &d, nil
}

// draftOutput is the structured-mode response shape.
type draftOutput struct {
	Stem    string `json:"stem"`
	LeadIn  string `json:"lead_in"`
	Options []struct {
		Text      string `json:"text"`
		Rationale string `json:"rationale"`
	} `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	Pearls       []string `json:"pearls"`
}

func decodeStructured(raw json.RawMessage) (question.Draft, error) {
	var out draftOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return question.Draft{}, fmt.Errorf("decode structured draft: %w", err)
	}

	d := question.Draft{
		Stem:         out.Stem,
		LeadIn:       out.LeadIn,
		CorrectIndex: out.CorrectIndex,
		Explanation:  out.Explanation,
		Pearls:       out.Pearls,
	}
	for _, o := range out.Options {
		d.Options = append(d.Options, question.Option{Text: o.Text, Rationale: o.Rationale})
	}
	if out.CorrectIndex < 0 || out.CorrectIndex >= len(d.Options) {
		d.CorrectIndex = 0
		d.AmbiguousAnswer = true
	}
	return d, nil
}

func excerpt(s string) string {
	if len(s) <= maxRawExcerpt {
		return s
	}
	return s[:maxRawExcerpt]
}

// QuestionSchema constrains structured-mode output.
var QuestionSchema = &llm.Schema{
	Name:        "exam-question",
	Description: "A board-style multiple-choice question with five options.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stem":    map[string]any{"type": "string", "description": "Clinical vignette"},
			"lead_in": map[string]any{"type": "string", "description": "The question posed after the vignette"},
			"options": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text":      map[string]any{"type": "string"},
						"rationale": map[string]any{"type": "string"},
					},
					"required": []any{"text", "rationale"},
				},
			},
			"correct_index": map[string]any{"type": "integer", "description": "Zero-based index of the correct option"},
			"explanation":   map[string]any{"type": "string"},
			"pearls": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"stem", "lead_in", "options", "correct_index", "explanation"},
	},
}
