package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// workerMetrics holds all Prometheus metrics owned by the ingestion worker.
type workerMetrics struct {
	// jobsTotal counts finished jobs, partitioned by status: "success" or "failure".
	jobsTotal *prometheus.CounterVec

	// jobDurationSeconds records the wall-clock duration of each job.
	jobDurationSeconds *prometheus.HistogramVec

	// chunksTotal counts chunks stored across all successful jobs.
	chunksTotal prometheus.Counter

	// inFlight is the number of jobs currently being processed.
	inFlight prometheus.Gauge

	// queueDepth is the last observed length of the task list.
	queueDepth prometheus.Gauge
}

// newWorkerMetrics registers all worker metrics against reg.
func newWorkerMetrics(reg prometheus.Registerer) *workerMetrics {
	factory := promauto.With(reg)

	return &workerMetrics{
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resumechat",
			Subsystem: "ingestion",
			Name:      "jobs_total",
			Help:      "Total number of ingestion jobs finished, partitioned by status.",
		}, []string{"status"}),

		jobDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "resumechat",
			Subsystem: "ingestion",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of ingestion jobs.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),

		chunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "resumechat",
			Subsystem: "ingestion",
			Name:      "chunks_total",
			Help:      "Total number of chunks stored by successful ingestion jobs.",
		}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "resumechat",
			Subsystem: "ingestion",
			Name:      "jobs_in_flight",
			Help:      "Number of ingestion jobs currently being processed.",
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "resumechat",
			Subsystem: "ingestion",
			Name:      "queue_depth",
			Help:      "Number of ingestion jobs waiting in the queue at the last poll.",
		}),
	}
}
