package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

func TestNextRun(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"later today", time.Date(2025, 3, 1, 1, 30, 0, 0, time.UTC), time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)},
		{"exactly now rolls over", time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC), time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC)},
		{"past today", time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC), time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2025, 2, 28, 5, 0, 0, 0, time.UTC), time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)},
		{"non-UTC input", time.Date(2025, 3, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600)), time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextRun(tc.now, 2, 0)
			if !got.Equal(tc.want) {
				t.Fatalf("nextRun(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}

type recordingRunner struct {
	mu    sync.Mutex
	calls []int
	err   error
	ran   chan struct{}
}

func (r *recordingRunner) RunScheduled(_ context.Context, lookback int, _ bool) (models.AnalysisResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, lookback)
	r.mu.Unlock()
	r.ran <- struct{}{}
	return models.AnalysisResult{RunID: "r1", Status: models.RunCompleted}, r.err
}

func TestSchedulerRunsAtEachTick(t *testing.T) {
	runner := &recordingRunner{ran: make(chan struct{}, 4), err: errors.New("fetch failed")}
	s := newScheduler(runner, slog.New(slog.NewTextHandler(io.Discard, nil)), 2, 0, 12, false)

	var waits []time.Duration
	var mu sync.Mutex
	s.now = func() time.Time { return time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC) }
	s.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-runner.ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("scheduled run %d did not happen", i+1)
		}
	}
	cancel()
	// Drain any run already in flight so Run can observe the cancellation.
	go func() {
		for range runner.ran {
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) < 2 || runner.calls[0] != 12 {
		t.Fatalf("expected lookback 12 on every run, got %v", runner.calls)
	}
	mu.Lock()
	defer mu.Unlock()
	if waits[0] != time.Hour {
		t.Fatalf("expected first wait of 1h, got %s", waits[0])
	}
}

func TestSchedulerStopsWhenCancelled(t *testing.T) {
	runner := &recordingRunner{ran: make(chan struct{}, 1)}
	s := newScheduler(runner, slog.New(slog.NewTextHandler(io.Discard, nil)), 2, 0, 24, false)
	s.after = func(time.Duration) <-chan time.Time { return make(chan time.Time) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	if len(runner.calls) != 0 {
		t.Fatalf("expected no runs after cancellation, got %d", len(runner.calls))
	}
}
