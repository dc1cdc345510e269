package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a provider failure by how the Completer reacts to it.
type Kind int

const (
	// KindTransient failures are retried against the same model.
	KindTransient Kind = iota + 1
	// KindRateLimited failures trigger the fallback model, never a wait.
	KindRateLimited
	// KindTerminal failures are surfaced immediately.
	KindTerminal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Failure is a classified error from a provider or from a completion call.
type Failure struct {
	Kind Kind

	// Model is the model the failing attempt ran against.
	Model string

	// RetryAfter is the provider's wait hint. Zero means unknown.
	RetryAfter time.Duration

	// StatusCode is the HTTP status of the failed response, if there was one.
	StatusCode int

	// Exhausted is set when the retry budget ran out on a transient failure.
	Exhausted bool

	// Attempts lists every attempt of the call. Set by the Completer.
	Attempts []Attempt

	Err error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(f.Kind.String())
	if f.Model != "" {
		fmt.Fprintf(&b, " on %s", f.Model)
	}
	if f.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", f.StatusCode)
	}
	if f.RetryAfter > 0 {
		fmt.Fprintf(&b, ", retry after %s", f.RetryAfter)
	}
	if f.Exhausted {
		fmt.Fprintf(&b, ", gave up after %d attempts", len(f.Attempts))
	}
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the classification of err, or zero if err carries none.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

// IsRateLimited reports whether err is a rate-limit failure and returns the
// provider's wait hint (zero when unknown).
func IsRateLimited(err error) (time.Duration, bool) {
	var f *Failure
	if errors.As(err, &f) && f.Kind == KindRateLimited {
		return f.RetryAfter, true
	}
	return 0, false
}

func transient(err error) *Failure {
	return &Failure{Kind: KindTransient, Err: err}
}

func terminal(err error) *Failure {
	return &Failure{Kind: KindTerminal, Err: err}
}

// statusFailure classifies an HTTP error response.
func statusFailure(code int, retryAfter time.Duration, err error) *Failure {
	return &Failure{
		Kind:       classifyStatus(code),
		StatusCode: code,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// classifyStatus maps an HTTP status to a failure kind. Statuses outside the
// error range are treated as transient since the attempt still failed.
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code == http.StatusTooEarly,
		code >= 500:
		return KindTransient
	case code >= 400:
		return KindTerminal
	default:
		return KindTransient
	}
}

// parseRetryAfter reads a Retry-After header value, either delay-seconds
// or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if ts, err := http.ParseTime(value); err == nil {
		if wait := time.Until(ts); wait > 0 {
			return wait, true
		}
	}
	return 0, false
}

// ErrInvalidResponse indicates the LLM replied, but the reply held no JSON
// value or the value does not conform to the requested schema.
type ErrInvalidResponse struct {
	// Content is the raw text the model returned.
	Content string

	// Model is the model that produced Content.
	Model string

	// Truncated is set when generation stopped at the token limit.
	Truncated bool

	Err error
}

func (e *ErrInvalidResponse) Error() string {
	if e.Truncated {
		return fmt.Sprintf("invalid LLM response (truncated at max tokens): %v", e.Err)
	}
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }
