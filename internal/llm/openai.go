package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using the OpenAI SDK.
// It also serves Groq, OpenRouter and other OpenAI-compatible APIs via BaseURL.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return newOpenAIProviderRaw(cfg), nil
}

// newOpenAIProviderRaw builds the provider without checking credentials,
// for compatible backends that validate their own config.
func newOpenAIProviderRaw(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	config.HTTPClient = &retryAfterDoer{inner: http.DefaultClient}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := modelFor(req, p.model)

	// The SDK drops response headers from its errors, so the transport
	// stores Retry-After here.
	var hint time.Duration
	ctx = context.WithValue(ctx, retryAfterKey{}, &hint)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               model,
		Messages:            buildOpenAIMessages(req),
		MaxCompletionTokens: req.MaxTokens,
		Temperature:         float32(req.Temperature),
	})
	if err != nil {
		return nil, mapOpenAIError(err, hint)
	}

	if len(resp.Choices) == 0 {
		return nil, transient(errors.New("no choices in OpenAI response"))
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, transient(fmt.Errorf("empty content in OpenAI response (finish_reason=%q)", choice.FinishReason))
	}

	return &Response{
		Text: choice.Message.Content,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model:      resp.Model,
		StopReason: mapOpenAIStopReason(choice.FinishReason),
	}, nil
}

func (p *OpenAIProvider) ModelID() string {
	return p.model
}

func buildOpenAIMessages(req Request) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	return messages
}

func mapOpenAIStopReason(reason openai.FinishReason) string {
	if reason == openai.FinishReasonLength {
		return "max_tokens"
	}
	return "end"
}

func mapOpenAIError(err error, retryAfter time.Duration) *Failure {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusFailure(apiErr.HTTPStatusCode, retryAfter, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusFailure(reqErr.HTTPStatusCode, retryAfter, err)
	}
	// No response at all: DNS, connection reset, client timeout.
	return transient(err)
}

type retryAfterKey struct{}

// retryAfterDoer records the Retry-After header of error responses into the
// slot carried by the request context.
type retryAfterDoer struct {
	inner *http.Client
}

func (d *retryAfterDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.inner.Do(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	if slot, ok := req.Context().Value(retryAfterKey{}).(*time.Duration); ok {
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			*slot = wait
		}
	}
	return resp, nil
}
