package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapLimitEmpty(t *testing.T) {
	results, errs := MapLimit(context.Background(), []int{}, 4, func(ctx context.Context, i int) (int, error) {
		return i, nil
	})
	if results != nil || errs != nil {
		t.Errorf("expected nil results and errs for empty input")
	}
}

func TestMapLimitPreservesOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	results, errs := MapLimit(context.Background(), items, 3, func(ctx context.Context, i int) (int, error) {
		time.Sleep(time.Duration(i) * time.Millisecond)
		return i * 2, nil
	})
	for i, v := range items {
		if errs[i] != nil {
			t.Fatalf("unexpected error at %d: %v", i, errs[i])
		}
		if results[i] != v*2 {
			t.Errorf("at %d: got %d, want %d", i, results[i], v*2)
		}
	}
}

func TestMapLimitConcurrencyEqualsLength(t *testing.T) {
	items := make([]int, 10)
	var inflight int32
	var maxInflight int32
	MapLimit(context.Background(), items, len(items), func(ctx context.Context, i int) (int, error) {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			m := atomic.LoadInt32(&maxInflight)
			if cur <= m || atomic.CompareAndSwapInt32(&maxInflight, m, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return i, nil
	})
	if maxInflight != int32(len(items)) {
		t.Errorf("expected concurrency to reach %d, got %d", len(items), maxInflight)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryRespectsShouldRetry(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryOptions{MaxAttempts: 5, BaseDelay: time.Millisecond},
		func(error) bool { return false },
		func(ctx context.Context) error {
			attempts++
			return errors.New("non-retryable")
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil, func(ctx context.Context) error {
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
