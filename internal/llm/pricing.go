package llm

// ModelCost holds per-million-token pricing for a model in USD.
type ModelCost struct {
	InputPerMTok  float64 // USD per 1M input tokens
	OutputPerMTok float64 // USD per 1M output tokens
}

// Cost calculates the total USD cost for the given token counts.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// LookupCost returns the pricing for a model, or nil if unknown. Friendly
// names such as "claude-haiku" resolve to the model they stand for.
func LookupCost(model string) *ModelCost {
	if c, ok := modelCosts[model]; ok {
		return &c
	}
	for _, names := range []map[string]string{anthropicModels, geminiModels} {
		if id, ok := names[model]; ok {
			if c, ok := modelCosts[id]; ok {
				return &c
			}
		}
	}
	return nil
}

// modelCosts is the embedded pricing table. Last updated: 2026-02-15.
var modelCosts = map[string]ModelCost{
	// Groq
	"llama-3.3-70b-versatile": {0.59, 0.79},
	"llama-3.1-8b-instant":    {0.05, 0.08},
	"llama3-70b-8192":         {0.59, 0.79},
	"llama3-8b-8192":          {0.05, 0.08},
	"openai/gpt-oss-120b":     {0.15, 0.75},
	"openai/gpt-oss-20b":      {0.1, 0.5},

	// Anthropic
	"claude-3-5-haiku-20241022":  {0.8, 4},
	"claude-haiku-4-5-20251001":  {1, 5},
	"claude-sonnet-4-20250514":   {3, 15},
	"claude-sonnet-4-5-20250929": {3, 15},
	"claude-opus-4-1-20250805":   {15, 75},

	// OpenAI
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},

	// Google
	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-pro":        {1.25, 10},
}
