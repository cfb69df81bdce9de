package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"dvidsharvest/pkg/logger"
)

func testConfig(log logger.Logger) *Config {
	cfg := DefaultConfig()
	cfg.Logger = log
	return cfg
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func(attempt int) error {
		attempts++
		if attempt != attempts {
			t.Errorf("Expected attempt number %d, got %d", attempts, attempt)
		}
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := Do(context.Background(), op, testConfig(logger.NewNopLogger()))
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExhaustion(t *testing.T) {
	log := logger.NewTestLogger()
	sentinel := errors.New("persistent error")
	attempts := 0

	err := Do(context.Background(), func(int) error {
		attempts++
		return sentinel
	}, testConfig(log))

	if err == nil {
		t.Fatal("Expected error after max attempts")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped sentinel error, got %v", err)
	}
	if attempts != DefaultMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxAttempts, attempts)
	}
	// One warning per retry, none after the final attempt
	if got := len(log.GetMessagesByLevel("WARN")); got != DefaultMaxAttempts-1 {
		t.Errorf("Expected %d retry warnings, got %d", DefaultMaxAttempts-1, got)
	}
}

func TestRetryHasNoDelayByDefault(t *testing.T) {
	start := time.Now()
	_ = Do(context.Background(), func(int) error {
		return errors.New("fail")
	}, testConfig(logger.NewNopLogger()))

	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Expected immediate retries, took %v", elapsed)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(ctx, func(int) error {
		attempts++
		cancel()
		return errors.New("fail")
	}, testConfig(logger.NewNopLogger()))

	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestDoWithResult(t *testing.T) {
	result, err := DoWithResult(context.Background(), func(attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("first attempt fails")
		}
		return "ok", nil
	}, testConfig(logger.NewNopLogger()))

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected result ok, got %q", result)
	}
}

func TestBackoffFor(t *testing.T) {
	if _, ok := BackoffFor(0).(NoBackoff); !ok {
		t.Error("Expected NoBackoff for zero delay")
	}
	if _, ok := BackoffFor(-time.Second).(NoBackoff); !ok {
		t.Error("Expected NoBackoff for negative delay")
	}
	b := BackoffFor(5 * time.Millisecond)
	if b.NextDelay(1) != 5*time.Millisecond {
		t.Errorf("Expected 5ms delay, got %v", b.NextDelay(1))
	}
}

func TestDoWaitsBetweenAttempts(t *testing.T) {
	cfg := testConfig(logger.NewNopLogger())
	cfg.Backoff = ConstantBackoff{Delay: 20 * time.Millisecond}

	start := time.Now()
	calls := 0
	err := Do(context.Background(), func(int) error {
		calls++
		return errors.New("boom")
	}, cfg)

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected at least 40ms between attempts, got %v", elapsed)
	}
}

func TestConstantBackoff(t *testing.T) {
	b := ConstantBackoff{Delay: 10 * time.Millisecond}
	if b.NextDelay(0) != 0 {
		t.Error("Expected zero delay for attempt 0")
	}
	if b.NextDelay(2) != 10*time.Millisecond {
		t.Errorf("Expected 10ms delay, got %v", b.NextDelay(2))
	}
}
