package utils

import (
	"math"
	"slices"
	"sync"
	"time"
)

// LatencyWindow keeps the most recent run durations in a fixed ring.
type LatencyWindow struct {
	mu    sync.Mutex
	ring  []time.Duration
	next  int
	count int
}

// LatencySummary is a point-in-time view of a LatencyWindow.
type LatencySummary struct {
	Samples int
	P50     time.Duration
	P95     time.Duration
	Max     time.Duration
}

// NewLatencyWindow keeps up to size samples; non-positive sizes default to 512.
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 512
	}
	return &LatencyWindow{ring: make([]time.Duration, size)}
}

// Observe records d, overwriting the oldest sample once the window is full.
func (w *LatencyWindow) Observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring[w.next] = d
	w.next = (w.next + 1) % len(w.ring)
	if w.count < len(w.ring) {
		w.count++
	}
}

// Summary returns nearest-rank percentiles over the current window.
func (w *LatencyWindow) Summary() LatencySummary {
	w.mu.Lock()
	sorted := slices.Clone(w.ring[:w.count])
	w.mu.Unlock()

	if len(sorted) == 0 {
		return LatencySummary{}
	}
	slices.Sort(sorted)
	return LatencySummary{
		Samples: len(sorted),
		P50:     nearestRank(sorted, 50),
		P95:     nearestRank(sorted, 95),
		Max:     sorted[len(sorted)-1],
	}
}

func nearestRank(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
