package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestRetryPolicy_ConstantByDefault(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, RetryDelay: 200 * time.Millisecond}
	b := p.newBackOff()
	f := &Failure{Kind: KindTransient}

	for i := 0; i < 5; i++ {
		wait, ok := p.waitAfter(f, b)
		if !ok || wait != 200*time.Millisecond {
			t.Fatalf("wait %d = %s, %v; want 200ms", i, wait, ok)
		}
	}
}

func TestRetryPolicy_HintIgnoredByDefault(t *testing.T) {
	p := RetryPolicy{MaxRetries: 1, RetryDelay: 100 * time.Millisecond}
	wait, ok := p.waitAfter(&Failure{Kind: KindTransient, StatusCode: 503, RetryAfter: 600 * time.Second}, p.newBackOff())
	if !ok || wait != 100*time.Millisecond {
		t.Fatalf("wait = %s, %v; want retry delay of 100ms", wait, ok)
	}

	custom := RetryPolicy{
		MaxRetries: 1,
		MaxWait:    time.Second,
		Backoff: func() backoff.BackOff {
			return &sequenceBackOff{waits: []time.Duration{25 * time.Millisecond}}
		},
	}
	wait, _ = custom.waitAfter(&Failure{Kind: KindTransient, RetryAfter: time.Minute}, custom.newBackOff())
	if wait != 25*time.Millisecond {
		t.Fatalf("wait = %s, want backoff interval of 25ms", wait)
	}
}

func TestRetryPolicy_HonoredHintOverridesAndIsCapped(t *testing.T) {
	p := RetryPolicy{RetryDelay: time.Second, MaxWait: 3 * time.Second, HonorRetryAfter: true}
	b := p.newBackOff()

	wait, _ := p.waitAfter(&Failure{Kind: KindTransient, RetryAfter: 2 * time.Second}, b)
	if wait != 2*time.Second {
		t.Fatalf("wait = %s, want hint of 2s", wait)
	}
	wait, _ = p.waitAfter(&Failure{Kind: KindTransient, RetryAfter: time.Minute}, b)
	if wait != 3*time.Second {
		t.Fatalf("wait = %s, want cap of 3s", wait)
	}

	uncapped := RetryPolicy{RetryDelay: time.Second, HonorRetryAfter: true}
	wait, _ = uncapped.waitAfter(&Failure{Kind: KindTransient, RetryAfter: time.Minute}, uncapped.newBackOff())
	if wait != time.Minute {
		t.Fatalf("wait = %s, want uncapped hint", wait)
	}
}

func TestExponentialBackoff(t *testing.T) {
	p := RetryPolicy{Backoff: ExponentialBackoff(100*time.Millisecond, 400*time.Millisecond, 2)}
	b := p.newBackOff()
	f := &Failure{Kind: KindTransient}

	// ±20% jitter around 100ms, 200ms, 400ms, then capped at 400ms.
	bounds := [][2]time.Duration{
		{80 * time.Millisecond, 120 * time.Millisecond},
		{160 * time.Millisecond, 240 * time.Millisecond},
		{320 * time.Millisecond, 480 * time.Millisecond},
		{320 * time.Millisecond, 480 * time.Millisecond},
	}
	for i, bd := range bounds {
		wait, ok := p.waitAfter(f, b)
		if !ok {
			t.Fatalf("wait %d: backoff stopped", i)
		}
		if wait < bd[0] || wait > bd[1] {
			t.Fatalf("wait %d = %s, want within [%s, %s]", i, wait, bd[0], bd[1])
		}
	}
}

func TestExponentialBackoff_FreshPerCall(t *testing.T) {
	factory := ExponentialBackoff(100*time.Millisecond, time.Second, 2)
	first := factory()
	first.NextBackOff()
	first.NextBackOff()

	second := factory()
	if d := second.NextBackOff(); d > 120*time.Millisecond {
		t.Fatalf("new backoff started at %s, want ~100ms", d)
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	valid := []RetryPolicy{{}, {MaxRetries: 3, RetryDelay: time.Second, MaxWait: time.Minute}}
	for _, p := range valid {
		if err := p.validate(); err != nil {
			t.Errorf("validate(%+v) = %v", p, err)
		}
	}
	invalid := []RetryPolicy{{MaxRetries: -1}, {RetryDelay: -1}, {MaxWait: -1}}
	for _, p := range invalid {
		if err := p.validate(); err == nil {
			t.Errorf("validate(%+v) succeeded, want error", p)
		}
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Fatalf("zero wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep ignored cancellation")
	}
}
