package llm

import (
	"context"
	"encoding/json"
)

// Provider is the core abstraction for LLM interaction. The refinement
// pipeline talks to models exclusively through this interface, so retry,
// fallback, and logging behavior compose as decorators around it.
type Provider interface {
	// Generate sends a prompt to the LLM and returns its completion.
	// When the request carries a Schema, the provider uses its native
	// structured-output mechanism and the response Content is validated
	// JSON. When Schema is nil, Content is the raw completion text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the model's role and constraints.
	System string

	// Messages is the conversation history. Question drafting sends a
	// single user message; revision rounds append prior feedback.
	Messages []Message

	// Schema, when set, requests JSON output conforming to the given
	// JSON Schema. Used by the structured pipeline variant. When nil,
	// the response is free-form text (the vignette section format).
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM when the
// structured variant is in use.
type Schema struct {
	// Name identifies this schema. Kebab-case, e.g. "exam-question".
	Name string

	// Description is sent to the LLM to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Content is the generated output. Raw completion text for plain
	// requests, validated JSON when a Schema was supplied.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Text returns the response content as a string.
func (r *Response) Text() string {
	return string(r.Content)
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
