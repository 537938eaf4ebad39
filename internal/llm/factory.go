package llm

import (
	"context"
	"fmt"
)

// NewProvider creates a Provider from configuration, assembled as
// caller → fallback → retry → logging → SDK adapter. When fallback is
// enabled, the provider family's lighter model gets its own
// retry+logging chain and runs once after the primary chain exhausts.
func NewProvider(ctx context.Context, cfg Config, sink EventSink) (Provider, error) {
	if cfg.Provider == "mock" {
		return NewMockProvider(), nil
	}

	primary, err := newAdapter(ctx, cfg, false)
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}
	chain := WithRetry(WithLogging(primary, sink), cfg.Retry)

	if !cfg.Fallback {
		return chain, nil
	}

	fb, err := newAdapter(ctx, cfg, true)
	if err != nil {
		return nil, fmt.Errorf("initializing %s fallback provider: %w", cfg.Provider, err)
	}
	fbChain := WithRetry(WithLogging(fb, sink), cfg.Retry)

	return WithFallback(chain, fbChain), nil
}

// newAdapter builds the raw SDK adapter for the configured provider,
// selecting the fallback model when fb is set.
func newAdapter(ctx context.Context, cfg Config, fb bool) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		model := cfg.Gemini.Model
		if fb {
			model = cfg.Gemini.FallbackModel
		}
		return NewGeminiProvider(ctx, cfg.Gemini, model)
	case "openai":
		model := cfg.OpenAI.Model
		if fb {
			model = cfg.OpenAI.FallbackModel
		}
		return NewOpenAIProvider(cfg.OpenAI, model)
	case "anthropic":
		model := cfg.Anthropic.Model
		if fb {
			model = cfg.Anthropic.FallbackModel
		}
		return NewAnthropicProvider(cfg.Anthropic, model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
