package llm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "groq", "openai", "anthropic", "gemini", "openrouter", "mock"
	Provider string

	// Model overrides the selected provider's default model.
	Model string

	Groq       GroqConfig
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig
	Params     Params

	// Timeout bounds a whole completion, retries and fallback included.
	// Zero disables it. Default: 60s.
	Timeout time.Duration

	// Fallbacks are merged into DefaultFallbacks at startup.
	Fallbacks map[string]string
}

// GroqConfig holds Groq-specific configuration.
type GroqConfig struct {
	APIKey  string
	Model   string // Default: "llama-3.3-70b-versatile"
	BaseURL string // Default: "https://api.groq.com/openai/v1"
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string
	Model   string // Default: "claude-haiku"
	BaseURL string
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string
	Model   string // Default: "gemini-flash"
	BaseURL string
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "openai/gpt-oss-120b"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration

	// HonorRetryAfter lets a transient failure's Retry-After hint replace
	// RetryDelay, capped by MaxWait.
	HonorRetryAfter bool
	MaxWait         time.Duration

	// Exponential grows the delay from RetryDelay by Multiplier up to
	// MaxDelay instead of waiting RetryDelay every time.
	Exponential bool
	Multiplier  float64
	MaxDelay    time.Duration
}

// Policy converts the config into the policy a request carries.
func (r RetryConfig) Policy() RetryPolicy {
	p := RetryPolicy{
		MaxRetries:      r.MaxRetries,
		RetryDelay:      r.RetryDelay,
		HonorRetryAfter: r.HonorRetryAfter,
		MaxWait:         r.MaxWait,
	}
	if r.Exponential {
		p.Backoff = ExponentialBackoff(r.RetryDelay, r.MaxDelay, r.Multiplier)
	}
	return p
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderGroq,
		Groq: GroqConfig{
			Model: "llama-3.3-70b-versatile",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: "openai/gpt-oss-120b",
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			RetryDelay: 1 * time.Second,
			MaxWait:    30 * time.Second,
			Multiplier: 2.0,
			MaxDelay:   10 * time.Second,
		},
		Params: Params{
			Temperature: 0.7,
			MaxTokens:   2048,
		},
		Timeout: 60 * time.Second,
	}
}

// ConfigFromEnv builds a Config from APAI_* environment variables, falling
// back to defaults for unset values.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Provider, "APAI_LLM_PROVIDER")
	setString(&c.Model, "APAI_LLM_MODEL")

	setString(&c.Groq.APIKey, "APAI_GROQ_API_KEY")
	setString(&c.Groq.Model, "APAI_GROQ_MODEL")
	setString(&c.Groq.BaseURL, "APAI_GROQ_BASE_URL")

	setString(&c.OpenAI.APIKey, "APAI_OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "APAI_OPENAI_MODEL")
	setString(&c.OpenAI.BaseURL, "APAI_OPENAI_BASE_URL")

	setString(&c.Anthropic.APIKey, "APAI_ANTHROPIC_API_KEY")
	setString(&c.Anthropic.Model, "APAI_ANTHROPIC_MODEL")

	setString(&c.Gemini.APIKey, "APAI_GEMINI_API_KEY")
	setString(&c.Gemini.Model, "APAI_GEMINI_MODEL")

	setString(&c.OpenRouter.APIKey, "APAI_OPENROUTER_API_KEY")
	setString(&c.OpenRouter.Model, "APAI_OPENROUTER_MODEL")

	if v := os.Getenv("APAI_LLM_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("APAI_LLM_MAX_RETRIES: %w", err)
		}
		c.Retry.MaxRetries = n
	}
	if v := os.Getenv("APAI_LLM_HONOR_RETRY_AFTER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("APAI_LLM_HONOR_RETRY_AFTER: %w", err)
		}
		c.Retry.HonorRetryAfter = b
	}
	for name, dst := range map[string]*time.Duration{
		"APAI_LLM_RETRY_DELAY": &c.Retry.RetryDelay,
		"APAI_LLM_MAX_WAIT":    &c.Retry.MaxWait,
		"APAI_LLM_TIMEOUT":     &c.Timeout,
	} {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}
	if v := os.Getenv("APAI_LLM_FALLBACKS"); v != "" {
		fb, err := ParseFallbacks(v)
		if err != nil {
			return fmt.Errorf("APAI_LLM_FALLBACKS: %w", err)
		}
		if c.Fallbacks == nil {
			c.Fallbacks = make(map[string]string, len(fb))
		}
		for k, v := range fb {
			c.Fallbacks[k] = v
		}
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// DiscoverConfig checks standard API key env vars in priority order
// (Groq → Gemini → OpenAI → Anthropic → OpenRouter) and returns a Config
// for the first provider whose key is found. Returns (Config{}, false) if
// none found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := os.Getenv("GROQ_API_KEY"); k != "" {
		cfg.Provider = ProviderGroq
		cfg.Groq.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = ProviderGemini
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = ProviderOpenAI
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = ProviderAnthropic
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = ProviderOpenRouter
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}

	return Config{}, false
}

// Validate checks that the selected provider has its required API key set
// and that the retry settings are usable.
func (c Config) Validate() error {
	if c.Endpoint().APIKey == "" && c.Provider != ProviderMock {
		switch c.Provider {
		case ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOpenRouter:
			return fmt.Errorf("APAI_%s_API_KEY is required for the %s provider",
				strings.ToUpper(c.Provider), c.Provider)
		default:
			return fmt.Errorf("unknown LLM provider: %q", c.Provider)
		}
	}
	if c.SelectedModel() == "" {
		return fmt.Errorf("no model configured for the %s provider", c.Provider)
	}
	if err := c.Retry.Policy().validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	for primary, fallback := range c.Fallbacks {
		if err := validateFallback(primary, fallback); err != nil {
			return err
		}
	}
	return nil
}

// Endpoint returns the endpoint of the selected provider.
func (c Config) Endpoint() Endpoint {
	ep := Endpoint{Provider: c.Provider}
	switch c.Provider {
	case ProviderGroq:
		ep.APIKey, ep.BaseURL = c.Groq.APIKey, c.Groq.BaseURL
	case ProviderOpenAI:
		ep.APIKey, ep.BaseURL = c.OpenAI.APIKey, c.OpenAI.BaseURL
	case ProviderAnthropic:
		ep.APIKey, ep.BaseURL = c.Anthropic.APIKey, c.Anthropic.BaseURL
	case ProviderGemini:
		ep.APIKey, ep.BaseURL = c.Gemini.APIKey, c.Gemini.BaseURL
	case ProviderOpenRouter:
		ep.APIKey, ep.BaseURL = c.OpenRouter.APIKey, c.OpenRouter.BaseURL
	}
	return ep
}

// SelectedModel returns Model, or the selected provider's default.
func (c Config) SelectedModel() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case ProviderGroq:
		return c.Groq.Model
	case ProviderOpenAI:
		return c.OpenAI.Model
	case ProviderAnthropic:
		return c.Anthropic.Model
	case ProviderGemini:
		return c.Gemini.Model
	case ProviderOpenRouter:
		return c.OpenRouter.Model
	case ProviderMock:
		return "mock"
	}
	return ""
}

// Request builds a CompletionRequest for prompt from the config.
func (c Config) Request(prompt string) CompletionRequest {
	return CompletionRequest{
		Prompt:   prompt,
		Model:    c.SelectedModel(),
		Endpoint: c.Endpoint(),
		Params:   c.Params,
		Retry:    c.Retry.Policy(),
	}
}
