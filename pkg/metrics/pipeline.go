package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks video processing outcomes per pipeline stage.
type PipelineMetrics struct {
	stageDuration *prometheus.HistogramVec
	completed     *prometheus.CounterVec
	retried       prometheus.Counter
}

// NewPipelineMetrics registers the processing pipeline metrics.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "video_pipeline_stage_duration_seconds",
		Help:    "Duration of each video pipeline stage in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "video_pipeline_runs_total",
		Help: "Finished pipeline runs by outcome.",
	}, []string{"outcome"})
	retried := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "video_pipeline_retries_total",
		Help: "Transcode attempts that were retried.",
	})
	reg.MustRegister(stageDuration, completed, retried)
	return &PipelineMetrics{
		stageDuration: stageDuration,
		completed:     completed,
		retried:       retried,
	}
}

// ObserveStage records the elapsed time for one pipeline stage.
func (p *PipelineMetrics) ObserveStage(stage string, duration time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncCompleted counts a finished run with the given outcome.
func (p *PipelineMetrics) IncCompleted(outcome string) {
	if p == nil || p.completed == nil {
		return
	}
	p.completed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRetried counts a retried transcode attempt.
func (p *PipelineMetrics) IncRetried() {
	if p == nil || p.retried == nil {
		return
	}
	p.retried.Inc()
}
