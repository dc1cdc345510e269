package llm

import "context"

// Provider is the core abstraction for a single call to a language model.
// It makes exactly one attempt; retry and fallback belong to the Completer.
type Provider interface {
	// Generate sends one request and returns the model's text. Failures are
	// returned as *Failure so callers can branch on their Kind.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model used when a Request leaves Model empty.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// Model overrides the provider's default model. Friendly names such as
	// "claude-haiku" are resolved by the provider.
	Model string

	// System is the system prompt. Sets the LLM's role and constraints.
	System string

	// Messages is the conversation history. Completions built by the
	// Completer carry a single user message.
	Messages []Message

	// MaxTokens is the maximum number of tokens in the response.
	// Zero lets the provider pick its default.
	MaxTokens int

	// Temperature controls randomness. Zero leaves the provider default.
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

// Schema is a JSON Schema that structured completions are validated against.
type Schema struct {
	// Name identifies this schema and keys the compiled-schema cache.
	// Kebab-case, e.g. "choice-question".
	Name string

	// Description is a human-readable description of the expected value.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output for one attempt.
type Response struct {
	// Text is the raw generated text.
	Text string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the provider's identifier for the model that served the
	// request, which may differ from the friendly name that was asked for.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

func (u Usage) add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		TotalTokens:  u.TotalTokens + o.TotalTokens,
	}
}

// modelFor returns the model a request should run against.
func modelFor(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	return fallback
}
