package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeDead      = "dead"
)

type Metrics struct {
	Jobs     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderpipeline",
		Name:      "jobs_total",
		Help:      "Jobs processed, by queue and outcome.",
	}, []string{"queue", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderpipeline",
		Name:      "job_duration_seconds",
		Help:      "Time spent running a job's processor.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"queue"})

	reg.MustRegister(jobs, duration)
	return &Metrics{Jobs: jobs, Duration: duration}
}

func (m *Metrics) observe(queue, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(queue, outcome).Inc()
	m.Duration.WithLabelValues(queue).Observe(took.Seconds())
}
