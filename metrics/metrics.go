// Package metrics exposes conversion counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"epub2pdf/common"
	"epub2pdf/misc"
)

// Recoverable conditions, conversion continues when any of those happens.
const (
	ConditionAssetMissing               = "asset_missing"
	ConditionInvalidImageDimensions     = "invalid_image_dimensions"
	ConditionBookmarkExtractionDegraded = "bookmark_extraction_degraded"
	ConditionPageDrift                  = "page_drift"
)

// Recorder owns its registry so tests and multiple servers in one process do
// not collide on the global one.
type Recorder struct {
	registry   *prometheus.Registry
	conditions *prometheus.CounterVec
	jobs       *prometheus.CounterVec
	duration   prometheus.Histogram
	pages      prometheus.Histogram
}

func New() *Recorder {
	ns := misc.GetAppName()
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		conditions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "recoverable_conditions_total",
			Help:      "Recoverable conditions met during conversion.",
		}, []string{"condition"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "jobs_total",
			Help:      "Finished conversion jobs by final status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "job_duration_seconds",
			Help:      "Time from job creation to its final state.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		pages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "document_pages",
			Help:      "Page count of produced documents.",
			Buckets:   prometheus.ExponentialBuckets(4, 2, 10),
		}),
	}
	r.registry.MustRegister(
		r.conditions, r.jobs, r.duration, r.pages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Condition counts n occurrences of recoverable condition.
func (r *Recorder) Condition(name string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.conditions.WithLabelValues(name).Add(float64(n))
}

// JobFinished records final job status and how long it took.
func (r *Recorder) JobFinished(status common.JobStatus, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(status.String()).Inc()
	r.duration.Observe(elapsed.Seconds())
}

func (r *Recorder) Pages(n int) {
	if r == nil {
		return
	}
	r.pages.Observe(float64(n))
}

// ConditionCount returns current value of condition counter.
func (r *Recorder) ConditionCount(name string) float64 {
	if r == nil {
		return 0
	}
	m := &dto.Metric{}
	if err := r.conditions.WithLabelValues(name).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Handler serves registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
