package llm

import (
	"context"
	"strings"
	"testing"
)

func TestDial(t *testing.T) {
	tests := []struct {
		ep   Endpoint
		want string
	}{
		{Endpoint{APIKey: "k"}, "*llm.OpenAIProvider"},
		{Endpoint{Provider: "OpenAI", APIKey: "k", BaseURL: "http://localhost:8080/v1"}, "*llm.OpenAIProvider"},
		{Endpoint{Provider: ProviderGroq, APIKey: "k"}, "*llm.GroqProvider"},
		{Endpoint{Provider: ProviderAnthropic, APIKey: "k"}, "*llm.AnthropicProvider"},
		{Endpoint{Provider: ProviderGemini, APIKey: "k"}, "*llm.GeminiProvider"},
		{Endpoint{Provider: ProviderOpenRouter, APIKey: "k"}, "*llm.OpenRouterProvider"},
		{Endpoint{Provider: ProviderMock}, "*llm.MockProvider"},
	}
	for _, tt := range tests {
		p, err := Dial(context.Background(), tt.ep)
		if err != nil {
			t.Fatalf("Dial(%+v): %v", tt.ep, err)
		}
		if got := typeName(p); got != tt.want {
			t.Errorf("Dial(%+v) = %s, want %s", tt.ep, got, tt.want)
		}
	}
}

func TestDial_Errors(t *testing.T) {
	_, err := Dial(context.Background(), Endpoint{Provider: "cohere", APIKey: "k"})
	if err == nil || !strings.Contains(err.Error(), "unknown LLM provider") {
		t.Fatalf("err = %v", err)
	}

	_, err = Dial(context.Background(), Endpoint{Provider: ProviderGroq})
	if err == nil || !strings.Contains(err.Error(), "initializing groq provider") {
		t.Fatalf("err = %v", err)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *OpenAIProvider:
		return "*llm.OpenAIProvider"
	case *GroqProvider:
		return "*llm.GroqProvider"
	case *AnthropicProvider:
		return "*llm.AnthropicProvider"
	case *GeminiProvider:
		return "*llm.GeminiProvider"
	case *OpenRouterProvider:
		return "*llm.OpenRouterProvider"
	case *MockProvider:
		return "*llm.MockProvider"
	}
	return "?"
}
