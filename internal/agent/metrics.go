package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// managerMetrics holds the agent initialization metrics.
type managerMetrics struct {
	// inits counts initializations by outcome (success, failure, superseded).
	inits *prometheus.CounterVec
	// lastSuccess is the unix time of the last successful initialization.
	lastSuccess prometheus.Gauge
	// ready is 1 once a handle is installed.
	ready prometheus.Gauge
}

func newManagerMetrics(reg prometheus.Registerer) *managerMetrics {
	f := promauto.With(reg)
	return &managerMetrics{
		inits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resumechat",
			Subsystem: "agent",
			Name:      "initializations_total",
			Help:      "Agent initializations by outcome.",
		}, []string{"outcome"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "resumechat",
			Subsystem: "agent",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful agent initialization.",
		}),
		ready: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "resumechat",
			Subsystem: "agent",
			Name:      "ready",
			Help:      "1 when an agent is installed and chat is available.",
		}),
	}
}
