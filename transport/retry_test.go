package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrier_Do_SucceedsWithoutRetry(t *testing.T) {
	r := NewRetrier()
	calls := 0
	err := r.Do(context.Background(), "test", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetrier_Do_RetriesUntilSuccess(t *testing.T) {
	r := Retrier{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	calls := 0
	err := r.Do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetrier_Do_ReturnsLastErrorAfterExhaustion(t *testing.T) {
	r := Retrier{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	calls := 0
	wantErr := errors.New("permanent")
	err := r.Do(context.Background(), "test", func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", calls)
	}
}

func TestRetrier_Do_StopsOnContextCancellation(t *testing.T) {
	r := Retrier{MaxRetries: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, "test", func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls >= 6 {
		t.Errorf("expected attempts to stop early after cancellation, got %d calls", calls)
	}
}

func TestRetrier_Normalized_FillsZeroValues(t *testing.T) {
	r := Retrier{}.normalized()
	if r.MaxRetries != DefaultMaxRetries {
		t.Errorf("expected default max retries, got %d", r.MaxRetries)
	}
	if r.BaseDelay != 200*time.Millisecond {
		t.Errorf("expected default base delay, got %v", r.BaseDelay)
	}
	if r.MaxDelay != 10*time.Second {
		t.Errorf("expected default max delay, got %v", r.MaxDelay)
	}
}
