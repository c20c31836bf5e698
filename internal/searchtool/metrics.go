package searchtool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type searchMetrics struct {
	// requestsTotal counts tool calls by outcome (ok, invalid, error).
	requestsTotal *prometheus.CounterVec
	// durationSeconds observes end-to-end tool call latency.
	durationSeconds prometheus.Histogram
	// resultsReturned observes how many chunks a successful call returned.
	resultsReturned prometheus.Histogram
}

func newSearchMetrics(reg prometheus.Registerer) *searchMetrics {
	f := promauto.With(reg)
	return &searchMetrics{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resumechat",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "search_resumes calls by outcome.",
		}, []string{"outcome"}),
		durationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resumechat",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "search_resumes latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		resultsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resumechat",
			Subsystem: "search",
			Name:      "results_returned",
			Help:      "Chunks returned per successful search_resumes call.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20},
		}),
	}
}

func (m *searchMetrics) observe(outcome string, results int, start time.Time) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.durationSeconds.Observe(time.Since(start).Seconds())
	if outcome == "ok" {
		m.resultsReturned.Observe(float64(results))
	}
}
