package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	callIDKey  contextKey = "llm_call_id"
)

// WithPurpose attaches a purpose label to the context for attempt recording.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

func withCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey, id)
}

// CallIDFrom returns the id of the completion call the context belongs to,
// or "" outside a Completer.
func CallIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(callIDKey).(string)
	return v
}
