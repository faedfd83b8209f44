package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

type flakyClient struct {
	fails int
	err   error
	calls int
}

func (f *flakyClient) Name() string { return "flaky" }
func (f *flakyClient) Close() error { return nil }
func (f *flakyClient) GenerateJSON(context.Context, string, any) (json.RawMessage, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, f.err
	}
	return json.RawMessage(`{}`), nil
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyClient{fails: 2, err: errors.New("503")}
	cli := Wrap(inner, Retry(3, time.Millisecond))
	if _, err := cli.GenerateJSON(context.Background(), "p", nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	inner := &flakyClient{fails: 5, err: NewPermanentError(errors.New("bad key"))}
	cli := Wrap(inner, Retry(4, time.Millisecond))
	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	var pErr *PermanentError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	inner := &flakyClient{fails: 10, err: errors.New("timeout")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Wrap(inner, Retry(5, time.Second)).GenerateJSON(ctx, "p", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestWithLoggingWritesErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	inner := &flakyClient{fails: 1, err: errors.New("boom")}
	cli := Wrap(inner, WithLogging(logger))
	if _, err := cli.GenerateJSON(context.Background(), "prompt", map[string]any{"a": 1}); err == nil {
		t.Fatal("expected error")
	}
	out := buf.String()
	if !strings.Contains(out, "LLM request (flaky)") || !strings.Contains(out, "LLM error (flaky): boom") {
		t.Fatalf("log output = %q", out)
	}
}

func TestRateLimitSpacesCalls(t *testing.T) {
	cli := Wrap(&flakyClient{}, RateLimit(20, 1))
	t.Cleanup(func() { _ = cli.Close() })
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := cli.GenerateJSON(context.Background(), "p", nil); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected throttling, elapsed %v", elapsed)
	}
}

func TestFakeClientReplaysScript(t *testing.T) {
	f := NewFakeClient(`{"reply":"one"}`, `not json`)
	raw, err := f.GenerateJSON(context.Background(), "first", nil)
	if err != nil || string(raw) != `{"reply":"one"}` {
		t.Fatalf("first = %s, %v", raw, err)
	}
	if _, err := f.GenerateJSON(context.Background(), "second", nil); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("second err = %v", err)
	}
	raw, _ = f.GenerateJSON(context.Background(), "third", nil)
	if string(raw) != string(f.Fallback) {
		t.Fatalf("fallback = %s", raw)
	}
	if len(f.Prompts) != 3 {
		t.Fatalf("prompts = %d", len(f.Prompts))
	}
}

func TestTokenBucketRefillsFromClock(t *testing.T) {
	now := time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)
	b := newTokenBucket(2, 2)
	b.now = func() time.Time { return now }

	if d := b.reserve(); d != 0 {
		t.Fatalf("first reserve waited %v", d)
	}
	if d := b.reserve(); d != 0 {
		t.Fatalf("burst reserve waited %v", d)
	}
	if d := b.reserve(); d != 500*time.Millisecond {
		t.Fatalf("third reserve = %v, want 500ms", d)
	}

	now = now.Add(10 * time.Second)
	for i := range 2 {
		if d := b.reserve(); d != 0 {
			t.Fatalf("reserve %d after refill waited %v", i, d)
		}
	}
	if d := b.reserve(); d <= 0 {
		t.Fatalf("refill exceeded burst")
	}
}

func TestRateLimitWaitEndsOnCancelAndClose(t *testing.T) {
	if err := (*tokenBucket)(nil).Wait(context.Background()); err != nil {
		t.Fatalf("disabled limiter: %v", err)
	}

	cli := Wrap(&flakyClient{}, RateLimit(0.001, 1))
	if _, err := cli.GenerateJSON(context.Background(), "p", nil); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := cli.GenerateJSON(ctx, "p", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := cli.GenerateJSON(context.Background(), "p", nil)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = cli.Close()
	select {
	case err := <-done:
		var pErr *PermanentError
		if !errors.Is(err, ErrLimiterClosed) || !errors.As(err, &pErr) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by Close")
	}
	if _, err := cli.GenerateJSON(context.Background(), "p", nil); !errors.Is(err, ErrLimiterClosed) {
		t.Fatalf("after close err = %v", err)
	}
}
