package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("expected ErrMaxRetriesExceeded, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected the last error joined in, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected initial call plus 2 retries, got %d calls", calls)
	}
}

func TestDo_RetryIfStopsEarly(t *testing.T) {
	fatal := errors.New("bad request")
	config := fastConfig(5)
	config.RetryIf = UnlessPermanent()

	calls := 0
	err := Do(context.Background(), config, func() error {
		calls++
		return Permanent(fatal)
	})
	if !errors.Is(err, fatal) {
		t.Errorf("expected the permanent error, got %v", err)
	}
	if errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("expected no retry exhaustion for a permanent error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(3), func() error {
		return errors.New("transient")
	})
	if !errors.Is(err, ErrContextCanceled) {
		t.Errorf("expected ErrContextCanceled, got %v", err)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	config := fastConfig(2)
	var attempts []int
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	Do(context.Background(), config, func() error {
		return errors.New("transient")
	})

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected retry attempts [1 2], got %v", attempts)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "generated", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "generated" {
		t.Errorf("expected result 'generated', got %q", got)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	config := &Config{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
	}

	if d := Backoff(0, config); d != 10*time.Millisecond {
		t.Errorf("expected 10ms for attempt 0, got %v", d)
	}
	if d := Backoff(1, config); d != 20*time.Millisecond {
		t.Errorf("expected 20ms for attempt 1, got %v", d)
	}
	if d := Backoff(10, config); d != 50*time.Millisecond {
		t.Errorf("expected the cap 50ms, got %v", d)
	}
}

func TestBackoff_Jitter(t *testing.T) {
	config := &Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       0.5,
	}

	for i := 0; i < 50; i++ {
		d := Backoff(0, config)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("expected jittered delay within [50ms,150ms], got %v", d)
		}
	}
}

func TestErrorMarkers(t *testing.T) {
	base := errors.New("upstream")

	r := Retryable(base)
	if !IsRetryable(r) {
		t.Error("expected IsRetryable to see the marker")
	}
	if !errors.Is(r, base) {
		t.Error("expected marker to unwrap to the base error")
	}
	if IsRetryable(base) {
		t.Error("expected an unmarked error not to be retryable")
	}

	p := Permanent(base)
	if !IsPermanent(p) {
		t.Error("expected IsPermanent to see the marker")
	}
	if IsPermanent(r) {
		t.Error("expected a retryable error not to be permanent")
	}

	if !OnlyRetryable()(r) || OnlyRetryable()(base) {
		t.Error("expected OnlyRetryable to accept only marked errors")
	}
	if !UnlessPermanent()(base) || UnlessPermanent()(p) {
		t.Error("expected UnlessPermanent to reject only permanent errors")
	}
}
