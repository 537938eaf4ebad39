package llm

import (
	"fmt"
	"os"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "gemini", "openai", "anthropic", "mock"
	Provider string

	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Retry     RetryConfig

	// Fallback enables the two-tier model chain: when the primary
	// model's retry budget is exhausted, the provider's FallbackModel
	// is tried once (with its own retry chain).
	Fallback bool
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey        string
	Model         string // Default: "gemini-flash"
	FallbackModel string // Default: "gemini-flash-lite"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey        string
	Model         string // Default: "gpt-4o"
	FallbackModel string // Default: "gpt-4o-mini"
	BaseURL       string // Optional. Override for OpenAI-compatible APIs.
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey        string
	Model         string // Default: "claude-sonnet"
	FallbackModel string // Default: "claude-haiku"
}

// DefaultConfig returns a Config with sensible defaults. Gemini is the
// default family: question drafting on the full flash model falls back
// to the lite variant under sustained failure.
func DefaultConfig() Config {
	return Config{
		Provider: "gemini",
		Gemini: GeminiConfig{
			Model:         "gemini-flash",
			FallbackModel: "gemini-flash-lite",
		},
		OpenAI: OpenAIConfig{
			Model:         "gpt-4o",
			FallbackModel: "gpt-4o-mini",
		},
		Anthropic: AnthropicConfig{
			Model:         "claude-sonnet",
			FallbackModel: "claude-haiku",
		},
		Retry:    DefaultRetryConfig(),
		Fallback: true,
	}
}

// ConfigFromEnv builds a Config from EXAMFORGE_* environment variables,
// falling back to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if p := os.Getenv("EXAMFORGE_LLM_PROVIDER"); p != "" {
		cfg.Provider = p
	}
	if v := os.Getenv("EXAMFORGE_LLM_NO_FALLBACK"); v != "" {
		cfg.Fallback = false
	}

	if k := os.Getenv("EXAMFORGE_GEMINI_API_KEY"); k != "" {
		cfg.Gemini.APIKey = k
	}
	if m := os.Getenv("EXAMFORGE_GEMINI_MODEL"); m != "" {
		cfg.Gemini.Model = m
	}
	if m := os.Getenv("EXAMFORGE_GEMINI_FALLBACK_MODEL"); m != "" {
		cfg.Gemini.FallbackModel = m
	}

	if k := os.Getenv("EXAMFORGE_OPENAI_API_KEY"); k != "" {
		cfg.OpenAI.APIKey = k
	}
	if m := os.Getenv("EXAMFORGE_OPENAI_MODEL"); m != "" {
		cfg.OpenAI.Model = m
	}
	if m := os.Getenv("EXAMFORGE_OPENAI_FALLBACK_MODEL"); m != "" {
		cfg.OpenAI.FallbackModel = m
	}
	if u := os.Getenv("EXAMFORGE_OPENAI_BASE_URL"); u != "" {
		cfg.OpenAI.BaseURL = u
	}

	if k := os.Getenv("EXAMFORGE_ANTHROPIC_API_KEY"); k != "" {
		cfg.Anthropic.APIKey = k
	}
	if m := os.Getenv("EXAMFORGE_ANTHROPIC_MODEL"); m != "" {
		cfg.Anthropic.Model = m
	}
	if m := os.Getenv("EXAMFORGE_ANTHROPIC_FALLBACK_MODEL"); m != "" {
		cfg.Anthropic.FallbackModel = m
	}

	return cfg
}

// DiscoverConfig probes standard API key env vars in priority order
// (Gemini → OpenAI → Anthropic) and returns a Config for the first
// provider whose key is found. Returns (Config{}, false) if none found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = "gemini"
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = "openai"
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = "anthropic"
		cfg.Anthropic.APIKey = k
		return cfg, true
	}

	return Config{}, false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("EXAMFORGE_GEMINI_API_KEY is required for the gemini provider")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("EXAMFORGE_OPENAI_API_KEY is required for the openai provider")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("EXAMFORGE_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
