package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type uploadMetrics struct {
	// batches counts accepted upload batches.
	batches prometheus.Counter
	// files counts staged files across accepted batches.
	files prometheus.Counter
	// failures counts rejected uploads by reason.
	failures *prometheus.CounterVec
}

func newUploadMetrics(reg prometheus.Registerer) *uploadMetrics {
	f := promauto.With(reg)
	return &uploadMetrics{
		batches: f.NewCounter(prometheus.CounterOpts{
			Namespace: "resumechat",
			Subsystem: "upload",
			Name:      "batches_total",
			Help:      "Upload batches accepted and enqueued.",
		}),
		files: f.NewCounter(prometheus.CounterOpts{
			Namespace: "resumechat",
			Subsystem: "upload",
			Name:      "files_total",
			Help:      "Files staged in accepted batches.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resumechat",
			Subsystem: "upload",
			Name:      "failures_total",
			Help:      "Rejected uploads by reason.",
		}, []string{"reason"}),
	}
}
