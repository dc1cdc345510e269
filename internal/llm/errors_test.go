package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusRequestTimeout, KindTransient},
		{http.StatusConflict, KindTransient},
		{http.StatusTooEarly, KindTransient},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusBadGateway, KindTransient},
		{http.StatusServiceUnavailable, KindTransient},
		{529, KindTransient}, // overloaded
		{http.StatusBadRequest, KindTerminal},
		{http.StatusUnauthorized, KindTerminal},
		{http.StatusForbidden, KindTerminal},
		{http.StatusNotFound, KindTerminal},
		{http.StatusUnprocessableEntity, KindTerminal},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.code); got != tt.want {
			t.Errorf("classifyStatus(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("600"); !ok || d != 600*time.Second {
		t.Fatalf("parseRetryAfter(600) = %s, %v", d, ok)
	}
	if d, ok := parseRetryAfter(" 1.5 "); !ok || d != 1500*time.Millisecond {
		t.Fatalf("parseRetryAfter(1.5) = %s, %v", d, ok)
	}

	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	d, ok := parseRetryAfter(future)
	if !ok || d <= 60*time.Second || d > 90*time.Second {
		t.Fatalf("parseRetryAfter(date) = %s, %v", d, ok)
	}

	for _, bad := range []string{"", "0", "-5", "soon", time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)} {
		if _, ok := parseRetryAfter(bad); ok {
			t.Errorf("parseRetryAfter(%q) reported a hint", bad)
		}
	}
}

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("quota exceeded")
	f := &Failure{
		Kind:       KindRateLimited,
		Model:      "llama-3.3-70b-versatile",
		StatusCode: 429,
		RetryAfter: 10 * time.Second,
		Err:        cause,
	}
	msg := f.Error()
	for _, want := range []string{"rate_limited", "llama-3.3-70b-versatile", "HTTP 429", "retry after 10s", "quota exceeded"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(f, cause) {
		t.Fatal("Failure must unwrap to its cause")
	}

	exhausted := &Failure{Kind: KindTransient, Exhausted: true, Attempts: make([]Attempt, 3)}
	if !strings.Contains(exhausted.Error(), "gave up after 3 attempts") {
		t.Fatalf("Error() = %q", exhausted.Error())
	}
}

func TestKindOfAndIsRateLimited(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", rateLimitErr(5*time.Second))
	if KindOf(wrapped) != KindRateLimited {
		t.Fatalf("KindOf(wrapped) = %s", KindOf(wrapped))
	}
	if d, ok := IsRateLimited(wrapped); !ok || d != 5*time.Second {
		t.Fatalf("IsRateLimited = %s, %v", d, ok)
	}

	if KindOf(errors.New("plain")) != 0 {
		t.Fatal("plain errors carry no kind")
	}
	if _, ok := IsRateLimited(transientErr()); ok {
		t.Fatal("transient failure reported as rate limited")
	}
	if KindOf(nil) != 0 {
		t.Fatal("nil carries no kind")
	}
}

func TestClassify_DoesNotMutateProviderError(t *testing.T) {
	orig := &Failure{Kind: KindTransient, Err: errors.New("x")}
	got := classify(orig, "model-a")
	if got == orig || orig.Model != "" || got.Model != "model-a" {
		t.Fatalf("classify must copy: orig=%+v got=%+v", orig, got)
	}
}

func TestErrInvalidResponse(t *testing.T) {
	err := &ErrInvalidResponse{Content: "no json", Truncated: true, Err: errors.New("missing")}
	if !strings.Contains(err.Error(), "truncated") {
		t.Fatalf("Error() = %q", err.Error())
	}
	var target *ErrInvalidResponse
	if !errors.As(fmt.Errorf("wrap: %w", err), &target) {
		t.Fatal("errors.As failed")
	}
}
