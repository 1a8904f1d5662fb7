package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base := time.Second
	limit := 10 * time.Second

	tests := []struct {
		attempt int
		expect  time.Duration
	}{
		{attempt: 0, expect: time.Second},
		{attempt: 1, expect: 2 * time.Second},
		{attempt: 3, expect: 8 * time.Second},
		{attempt: 4, expect: limit},
		{attempt: 20, expect: limit},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, base, limit); got != tt.expect {
			t.Fatalf("attempt %d: expected %s, got %s", tt.attempt, tt.expect, got)
		}
	}

	if got := Backoff(3, 0, limit); got != 0 {
		t.Fatalf("expected zero delay without base, got %s", got)
	}
}

// fakeTimer replaces newTimer and records how it was used.
type fakeTimer struct {
	fired    chan time.Time
	duration time.Duration
	stopped  bool
}

func installFakeTimer(t *testing.T) *fakeTimer {
	t.Helper()
	fake := &fakeTimer{fired: make(chan time.Time, 1)}
	original := newTimer
	newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
		fake.duration = d
		return fake.fired, func() bool {
			fake.stopped = true
			return true
		}
	}
	t.Cleanup(func() { newTimer = original })
	return fake
}

func TestWaitForHonoursContext(t *testing.T) {
	fake := installFakeTimer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if !fake.stopped {
		t.Fatal("expected the timer to be stopped on cancellation")
	}
}

func TestWaitForReturnsAfterTimer(t *testing.T) {
	fake := installFakeTimer(t)
	fake.fired <- time.Now()

	if err := WaitFor(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.duration != 3*time.Second {
		t.Fatalf("expected a 3s timer, got %s", fake.duration)
	}
}

func TestWaitForStopsRealTimer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected WaitFor to return with the context, took %s", elapsed)
	}
}
