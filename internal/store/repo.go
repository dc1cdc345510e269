package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match
	CallID  string    // only attempts of this completion call
	Model   string    // exact model match
	From    time.Time // timestamp >= From
}

// LLMAttemptEventData captures one provider attempt made during a completion.
type LLMAttemptEventData struct {
	CallID       string
	Provider     string
	Model        string
	Purpose      string
	Outcome      string // ok, transient, rate_limited, terminal, canceled
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMAttemptEvent is a recorded attempt.
type LLMAttemptEvent struct {
	ID        int
	Timestamp time.Time
	LLMAttemptEventData
}

// PurposeUsage aggregates attempts by purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates attempts by model.
type ModelUsage struct {
	Model        string
	Calls        int
	RateLimited  int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to attempt events.
type EventRepo interface {
	// AppendLLMAttempt records one provider attempt.
	AppendLLMAttempt(ctx context.Context, data LLMAttemptEventData) error

	// QueryLLMEvents returns attempts newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMAttemptEvent, error)

	// GetLLMEvent returns one attempt, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMAttemptEvent, error)

	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}
