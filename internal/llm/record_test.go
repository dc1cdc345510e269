package llm

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/store"
)

func openTestRepo(t *testing.T) store.EventRepo {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.EventRepo()
}

func TestRecording_FallbackCallIsOneCallID(t *testing.T) {
	repo := openTestRepo(t)
	mock := NewMockProvider(
		MockResponse{Err: rateLimitErr(600 * time.Second)},
		MockResponse{Text: `{"ok":true}`, Usage: Usage{InputTokens: 12, OutputTokens: 4, TotalTokens: 16}},
	)
	c := NewCompleter(
		WithProvider(mock),
		WithFallbacks(NewFallbackTable(testFallbacks)),
		WithSleeper((&sleepRecorder{}).sleep),
		WithRecorder(repo),
	)

	ctx := WithPurpose(context.Background(), "question-gen")
	req := testRequest()
	req.Endpoint = Endpoint{Provider: ProviderGroq}
	comp, err := c.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{CallID: comp.CallID})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %d", len(events))
	}

	// Newest first.
	ok, limited := events[0], events[1]
	if limited.Model != "test-model-70b" || limited.Outcome != "rate_limited" || limited.Success {
		t.Fatalf("first attempt recorded as %+v", limited.LLMAttemptEventData)
	}
	if ok.Model != "test-model-8b" || ok.Outcome != "ok" || !ok.Success || ok.InputTokens != 12 {
		t.Fatalf("fallback attempt recorded as %+v", ok.LLMAttemptEventData)
	}
	for _, e := range events {
		if e.Purpose != "question-gen" || e.Provider != ProviderGroq {
			t.Fatalf("event labels = %s/%s", e.Purpose, e.Provider)
		}
		if !strings.Contains(e.RequestBody, "Generate one question.") || !strings.Contains(e.RequestBody, "max_tokens=256") {
			t.Fatalf("request body = %q", e.RequestBody)
		}
	}
	if ok.ResponseBody != `{"ok":true}` {
		t.Fatalf("response body = %q", ok.ResponseBody)
	}
	if !strings.Contains(limited.ErrorMessage, "rate limit reached") {
		t.Fatalf("error message = %q", limited.ErrorMessage)
	}
}

type failingRepo struct {
	store.EventRepo
	appends int
}

func (r *failingRepo) AppendLLMAttempt(context.Context, store.LLMAttemptEventData) error {
	r.appends++
	return errors.New("disk full")
}

func TestRecording_FailureOnlyLogs(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	repo := &failingRepo{}
	mock := NewMockProvider(MockResponse{Text: "fine"})

	p := WithRecording(mock, "mock", repo, logrus.NewEntry(log))
	resp, err := p.Generate(context.Background(), Request{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("recording failure leaked into the call: %v", err)
	}
	if resp.Text != "fine" || repo.appends != 1 {
		t.Fatalf("resp = %+v, appends = %d", resp, repo.appends)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %+v", entry)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("ModelID() = %q", p.ModelID())
	}
}

func TestRecording_CancelledAttemptIsStillRecorded(t *testing.T) {
	repo := openTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	blocking := providerFunc(func(ctx context.Context, req Request) (*Response, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	p := WithRecording(blocking, "openai", repo, logrus.NewEntry(logrus.New()))
	if _, err := p.Generate(ctx, Request{Model: "m"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].Outcome != "canceled" {
		t.Fatalf("events = %+v", events)
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.DeadlineExceeded, "canceled"},
		{rateLimitErr(0), "rate_limited"},
		{terminalErr(), "terminal"},
		{transientErr(), "transient"},
		{errors.New("eof"), "transient"},
	}
	for _, tt := range tests {
		if got := outcomeOf(tt.err); got != tt.want {
			t.Errorf("outcomeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
