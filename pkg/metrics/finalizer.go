package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FinalizerMetrics records run and item level outcomes for the
// auction finalization engine.
type FinalizerMetrics struct {
	runDuration *prometheus.HistogramVec
	runSkipped  *prometheus.CounterVec
	itemSuccess *prometheus.CounterVec
	itemFailure *prometheus.CounterVec
}

// NewFinalizerMetrics registers the finalizer metrics on the provided registerer.
func NewFinalizerMetrics(reg prometheus.Registerer) *FinalizerMetrics {
	if reg == nil {
		return &FinalizerMetrics{}
	}
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finalizer_run_duration_seconds",
		Help:    "Duration of finalization runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	runSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finalizer_run_skipped",
		Help: "Runs skipped because a previous run was still in progress.",
	}, []string{"trigger"})
	itemSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finalizer_item_success",
		Help: "Auctions finalized successfully.",
	}, []string{"trigger"})
	itemFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finalizer_item_failure",
		Help: "Auctions whose finalization attempt failed.",
	}, []string{"trigger"})
	reg.MustRegister(runDuration, runSkipped, itemSuccess, itemFailure)
	return &FinalizerMetrics{
		runDuration: runDuration,
		runSkipped:  runSkipped,
		itemSuccess: itemSuccess,
		itemFailure: itemFailure,
	}
}

// ObserveRunDuration records the duration of a finalization run.
func (f *FinalizerMetrics) ObserveRunDuration(trigger string, duration time.Duration) {
	if f == nil || f.runDuration == nil {
		return
	}
	f.runDuration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncRunSkipped increments the skipped-run counter.
func (f *FinalizerMetrics) IncRunSkipped(trigger string) {
	if f == nil || f.runSkipped == nil {
		return
	}
	f.runSkipped.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// AddItemSuccess adds to the item success counter.
func (f *FinalizerMetrics) AddItemSuccess(trigger string, n int) {
	if f == nil || f.itemSuccess == nil || n <= 0 {
		return
	}
	f.itemSuccess.WithLabelValues(normalizeLabel(trigger)).Add(float64(n))
}

// AddItemFailure adds to the item failure counter.
func (f *FinalizerMetrics) AddItemFailure(trigger string, n int) {
	if f == nil || f.itemFailure == nil || n <= 0 {
		return
	}
	f.itemFailure.WithLabelValues(normalizeLabel(trigger)).Add(float64(n))
}

func normalizeLabel(trigger string) string {
	if trigger == "" {
		return "unknown"
	}
	return trigger
}
