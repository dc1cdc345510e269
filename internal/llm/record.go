package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/store"
)

// RecordingProvider is a decorator that records every attempt as an event.
type RecordingProvider struct {
	inner    Provider
	provider string
	repo     store.EventRepo
	log      *logrus.Entry
}

// WithRecording wraps p so each Generate appends one attempt event to repo.
// providerName labels the events, e.g. "groq".
func WithRecording(p Provider, providerName string, repo store.EventRepo, log *logrus.Entry) Provider {
	return &RecordingProvider{inner: p, provider: providerName, repo: repo, log: log}
}

func (r *RecordingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := r.inner.Generate(ctx, req)

	data := store.LLMAttemptEventData{
		CallID:      CallIDFrom(ctx),
		Provider:    r.provider,
		Model:       modelFor(req, r.inner.ModelID()),
		Purpose:     PurposeFrom(ctx),
		Outcome:     outcomeOf(err),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.ResponseBody = resp.Text
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}

	// Record even when the call was cancelled; never fail the attempt
	// because recording did.
	if recErr := r.repo.AppendLLMAttempt(context.WithoutCancel(ctx), data); recErr != nil {
		r.log.WithError(recErr).Warn("failed to record LLM attempt")
	}

	return resp, err
}

func (r *RecordingProvider) ModelID() string {
	return r.inner.ModelID()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case KindOf(err) == 0:
		return KindTransient.String()
	default:
		return KindOf(err).String()
	}
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "[params] max_tokens=%d temperature=%g\n", req.MaxTokens, req.Temperature)
	return b.String()
}
