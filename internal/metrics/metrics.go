package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful runs and calls.
	OutcomeSuccess = "success"
	// OutcomeNoLogs labels runs whose window contained no records.
	OutcomeNoLogs = "no_logs"
	// OutcomeError labels failed runs and calls.
	OutcomeError = "error"
	// OutcomeCacheHit labels advisory calls served from cache.
	OutcomeCacheHit = "cache_hit"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logrca",
			Name:      "analysis_runs_total",
			Help:      "Total number of analysis runs, partitioned by trigger and outcome.",
		},
		[]string{"trigger", "outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "logrca",
			Name:      "analysis_run_seconds",
			Help:      "Analysis run latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	recordsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logrca",
			Name:      "records_classified_total",
			Help:      "Log records classified, partitioned by category.",
		},
		[]string{"category"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "logrca",
			Name:      "stage_seconds",
			Help:      "Per-stage latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	advisoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logrca",
			Name:      "advisory_calls_total",
			Help:      "AI advisory requests, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// Register attaches logrca collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		recordsClassified,
		stageDurationSeconds,
		advisoryCalls,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration and outcome label.
func ObserveRun(trigger string, duration time.Duration, outcome string) {
	if trigger == "" {
		trigger = "api"
	}
	runsTotal.WithLabelValues(trigger, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveStage records how long one pipeline stage took.
func ObserveStage(stage string, duration time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// AddClassified counts classified records for a category.
func AddClassified(category string, n int) {
	if n <= 0 {
		return
	}
	recordsClassified.WithLabelValues(category).Add(float64(n))
}

// ObserveAdvisoryCall counts one advisory request.
func ObserveAdvisoryCall(kind, outcome string) {
	advisoryCalls.WithLabelValues(kind, outcome).Inc()
}
