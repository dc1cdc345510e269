package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shriguhanp/AdaptivePedagogyAI/internal/logger"
	"github.com/shriguhanp/AdaptivePedagogyAI/internal/store"
)

// Params are generation parameters passed through to the provider as-is.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// CompletionRequest describes one logical completion. A call never
// modifies it; the fallback attempt reuses every field except Model.
type CompletionRequest struct {
	Prompt   string
	System   string
	Model    string
	Endpoint Endpoint
	Params   Params
	Retry    RetryPolicy
}

func (r CompletionRequest) validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is empty")
	}
	if strings.TrimSpace(r.Model) == "" {
		return errors.New("model is empty")
	}
	if r.Params.MaxTokens < 0 {
		return fmt.Errorf("max tokens must be >= 0, got %d", r.Params.MaxTokens)
	}
	return r.Retry.validate()
}

func (r CompletionRequest) providerRequest(model string) Request {
	return Request{
		Model:       model,
		System:      r.System,
		Messages:    []Message{{Role: RoleUser, Content: r.Prompt}},
		MaxTokens:   r.Params.MaxTokens,
		Temperature: r.Params.Temperature,
	}
}

// Attempt is one provider call made during a completion.
type Attempt struct {
	Model   string
	Kind    Kind // zero on success
	Err     error
	Latency time.Duration
	Wait    time.Duration // slept after this attempt before the next
}

// Completion is the result of a successful call.
type Completion struct {
	CallID string
	Text   string

	// Model is the model that produced Text: the requested model, or its
	// fallback when FellBack is set.
	Model          string
	RequestedModel string
	FellBack       bool

	// ServedBy is the provider's own id for Model, e.g. a dated snapshot.
	ServedBy   string
	StopReason string

	// Usage sums token usage over every successful attempt.
	Usage    Usage
	Attempts []Attempt
}

// Dialer builds a Provider for an endpoint.
type Dialer func(ctx context.Context, ep Endpoint) (Provider, error)

// Completer runs completions with bounded retry and rate-limit fallback.
// It holds no per-call state and is safe for concurrent use.
type Completer struct {
	dial      Dialer
	fallbacks *FallbackTable
	sleep     Sleeper
	log       *logrus.Entry
	recorder  store.EventRepo
	timeout   time.Duration
}

// Option configures a Completer.
type Option func(*Completer)

// WithFallbacks sets the fallback table. Nil disables fallback.
func WithFallbacks(t *FallbackTable) Option {
	return func(c *Completer) { c.fallbacks = t }
}

// WithDialer replaces Dial, mainly so tests can inject providers.
func WithDialer(d Dialer) Option {
	return func(c *Completer) { c.dial = d }
}

// WithProvider makes every call use p regardless of endpoint.
func WithProvider(p Provider) Option {
	return WithDialer(func(context.Context, Endpoint) (Provider, error) { return p, nil })
}

// WithSleeper replaces the wait between retries.
func WithSleeper(s Sleeper) Option {
	return func(c *Completer) { c.sleep = s }
}

// WithLogger sets the logger used for retry and fallback events.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Completer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRecorder records every attempt to repo.
func WithRecorder(repo store.EventRepo) Option {
	return func(c *Completer) { c.recorder = repo }
}

// WithTimeout bounds each call, retries and waits included.
func WithTimeout(d time.Duration) Option {
	return func(c *Completer) { c.timeout = d }
}

// NewCompleter returns a Completer using Dial and DefaultFallbacks unless
// overridden by opts.
func NewCompleter(opts ...Option) *Completer {
	c := &Completer{
		dial:      Dial,
		fallbacks: DefaultFallbacks,
		sleep:     sleepContext,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCompleter = NewCompleter()

// Complete runs req on a Completer bound to DefaultFallbacks.
func Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return defaultCompleter.Complete(ctx, req)
}

// Complete issues req and returns the generated text.
//
// Transient failures are retried against the same model up to
// req.Retry.MaxRetries times. A rate-limited attempt is never waited out:
// the call is reissued once, without delay, against the fallback model, and
// that attempt's outcome is final. Without a fallback the rate-limit failure
// is returned with its wait hint. Terminal failures return immediately.
//
// Failures are returned as *Failure. A cancelled ctx yields ctx.Err().
func (c *Completer) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if err := req.validate(); err != nil {
		return nil, &Failure{Kind: KindTerminal, Model: req.Model, Err: fmt.Errorf("invalid request: %w", err)}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	provider, err := c.dial(ctx, req.Endpoint)
	if err != nil {
		return nil, &Failure{Kind: KindTerminal, Model: req.Model, Err: err}
	}

	cl := &call{
		id:  uuid.NewString(),
		req: req,
	}
	if c.recorder != nil {
		provider = WithRecording(provider, req.Endpoint.kind(), c.recorder, c.log)
	}
	cl.provider = provider
	cl.log = c.log.WithFields(logrus.Fields{
		"call_id": cl.id,
		"model":   req.Model,
	})
	ctx = withCallID(ctx, cl.id)

	// Resolved once so table edits never affect a call in flight.
	fallback, hasFallback := c.fallbacks.Lookup(req.Model)
	bo := req.Retry.newBackOff()

	for retries := 0; ; retries++ {
		resp, f, err := cl.attempt(ctx, req.Model)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return cl.completion(resp, req.Model), nil
		}

		switch f.Kind {
		case KindRateLimited:
			if !hasFallback {
				return nil, cl.surface(f, false)
			}
			cl.log.WithFields(logrus.Fields{
				"fallback":    fallback,
				"retry_after": f.RetryAfter,
			}).Warn("rate limited, switching to fallback model")

			resp, ff, err := cl.attempt(ctx, fallback)
			if err != nil {
				return nil, err
			}
			if ff != nil {
				return nil, cl.surface(ff, false)
			}
			return cl.completion(resp, fallback), nil

		case KindTransient:
			if retries >= req.Retry.MaxRetries {
				return nil, cl.surface(f, true)
			}
			wait, ok := req.Retry.waitAfter(f, bo)
			if !ok {
				return nil, cl.surface(f, true)
			}
			cl.attempts[len(cl.attempts)-1].Wait = wait
			cl.log.WithFields(logrus.Fields{
				"attempt": retries + 1,
				"wait":    wait,
			}).WithError(f).Warn("transient failure, retrying")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}

		default:
			return nil, cl.surface(f, false)
		}
	}
}

// call is the state of one Complete invocation.
type call struct {
	id       string
	req      CompletionRequest
	provider Provider
	log      *logrus.Entry
	attempts []Attempt
	usage    Usage
}

// attempt makes one provider call. It returns a classified failure, or a
// non-nil error only when ctx is done.
func (cl *call) attempt(ctx context.Context, model string) (*Response, *Failure, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	resp, err := cl.provider.Generate(ctx, cl.req.providerRequest(model))
	latency := time.Since(start)

	// A cancelled call returns no partial result, even if the provider
	// managed to answer.
	if ctxErr := ctx.Err(); ctxErr != nil {
		cl.attempts = append(cl.attempts, Attempt{Model: model, Err: ctxErr, Latency: latency})
		return nil, nil, ctxErr
	}

	if err != nil {
		f := classify(err, model)
		cl.attempts = append(cl.attempts, Attempt{Model: model, Kind: f.Kind, Err: f, Latency: latency})
		return nil, f, nil
	}

	cl.attempts = append(cl.attempts, Attempt{Model: model, Latency: latency})
	cl.usage = cl.usage.add(resp.Usage)
	return resp, nil, nil
}

func (cl *call) completion(resp *Response, model string) *Completion {
	if model != cl.req.Model {
		cl.log.WithField("fallback", model).Info("completed on fallback model")
	}
	return &Completion{
		CallID:         cl.id,
		Text:           resp.Text,
		Model:          model,
		RequestedModel: cl.req.Model,
		FellBack:       model != cl.req.Model,
		ServedBy:       resp.Model,
		StopReason:     resp.StopReason,
		Usage:          cl.usage,
		Attempts:       cl.attempts,
	}
}

// surface finalizes f for return to the caller.
func (cl *call) surface(f *Failure, exhausted bool) *Failure {
	out := *f
	out.Exhausted = exhausted
	out.Attempts = cl.attempts
	cl.log.WithFields(logrus.Fields{
		"kind":      out.Kind.String(),
		"attempts":  len(out.Attempts),
		"exhausted": exhausted,
	}).WithError(out.Err).Error("completion failed")
	return &out
}

// classify turns a provider error into a Failure for model without
// modifying the provider's value. Unclassified errors count as transient.
func classify(err error, model string) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		out := *f
		out.Model = model
		return &out
	}
	return &Failure{Kind: KindTransient, Model: model, Err: err}
}
