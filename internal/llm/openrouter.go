package llm

import "fmt"

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultGroqBaseURL       = "https://api.groq.com/openai/v1"
)

// OpenRouterProvider wraps OpenAIProvider with OpenRouter-specific defaults.
// OpenRouter exposes an OpenAI-compatible API, so the underlying SDK is reused.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "openai/gpt-oss-120b"
	}

	inner := newOpenAIProviderRaw(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   model,
		BaseURL: baseURL,
	})
	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

// GroqProvider targets Groq's OpenAI-compatible endpoint.
type GroqProvider struct {
	*OpenAIProvider
}

// NewGroqProvider creates a provider targeting the Groq API.
func NewGroqProvider(cfg GroqConfig) (*GroqProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}

	inner := newOpenAIProviderRaw(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   model,
		BaseURL: baseURL,
	})
	return &GroqProvider{OpenAIProvider: inner}, nil
}
