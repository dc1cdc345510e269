package llm

import (
	"context"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/extract"
)

// StructuredCompletion is a completion whose text held a JSON value.
type StructuredCompletion struct {
	*Completion
	Result *extract.Result
}

// CompleteJSON runs req like Complete and extracts the first JSON object or
// array from the reply. When schema is non-nil the value must validate
// against it. A reply without a usable value yields *ErrInvalidResponse;
// completion failures are returned unchanged.
func (c *Completer) CompleteJSON(ctx context.Context, req CompletionRequest, schema *Schema) (*StructuredCompletion, error) {
	comp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	res, ok := extract.Extract(comp.Text)
	if !ok {
		return nil, &ErrInvalidResponse{
			Content:   comp.Text,
			Model:     comp.Model,
			Truncated: comp.StopReason == "max_tokens",
			Err:       extract.ErrNotFound,
		}
	}

	if err := validateResponse(schema, res.Raw); err != nil {
		err.Content = comp.Text
		err.Model = comp.Model
		return nil, err
	}

	return &StructuredCompletion{Completion: comp, Result: res}, nil
}

// CompleteJSON runs req on a Completer bound to DefaultFallbacks.
func CompleteJSON(ctx context.Context, req CompletionRequest, schema *Schema) (*StructuredCompletion, error) {
	return defaultCompleter.CompleteJSON(ctx, req, schema)
}
