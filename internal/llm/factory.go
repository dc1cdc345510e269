package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider kinds accepted by Endpoint.Provider.
const (
	ProviderOpenAI     = "openai"
	ProviderGroq       = "groq"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Endpoint identifies where and how to reach a provider.
type Endpoint struct {
	// Provider selects the backend. Empty means ProviderOpenAI, which
	// serves any OpenAI-compatible API when BaseURL is set.
	Provider string
	BaseURL  string
	APIKey   string
}

func (e Endpoint) kind() string {
	if e.Provider == "" {
		return ProviderOpenAI
	}
	return strings.ToLower(e.Provider)
}

// Dial creates a Provider for ep. Providers make a single attempt per
// Generate; the Completer owns retry and fallback.
func Dial(ctx context.Context, ep Endpoint) (Provider, error) {
	var (
		p   Provider
		err error
	)

	switch ep.kind() {
	case ProviderOpenAI:
		p, err = NewOpenAIProvider(OpenAIConfig{APIKey: ep.APIKey, BaseURL: ep.BaseURL})
	case ProviderGroq:
		p, err = NewGroqProvider(GroqConfig{APIKey: ep.APIKey, BaseURL: ep.BaseURL})
	case ProviderAnthropic:
		p, err = NewAnthropicProvider(AnthropicConfig{APIKey: ep.APIKey, BaseURL: ep.BaseURL})
	case ProviderGemini:
		p, err = NewGeminiProvider(ctx, GeminiConfig{APIKey: ep.APIKey, BaseURL: ep.BaseURL})
	case ProviderOpenRouter:
		p, err = NewOpenRouterProvider(OpenRouterConfig{APIKey: ep.APIKey, BaseURL: ep.BaseURL})
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", ep.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", ep.kind(), err)
	}
	return p, nil
}
