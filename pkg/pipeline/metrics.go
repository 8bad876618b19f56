package pipeline

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/origamihpc/origami/config"
)

type pipelineMetrics struct {
	plansTotal         prometheus.Counter
	structuresTotal    prometheus.Counter
	structuresRejected prometheus.Counter
	planDuration       prometheus.Summary
}

// Registered once for the process; runners come and go per run.
var metrics = initPipelineMetrics()

func initPipelineMetrics() pipelineMetrics {
	namespace := strings.Replace(config.Namespace, "-", "_", -1)

	return pipelineMetrics{
		plansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "plans_total",
			Subsystem: "pipeline",
			Namespace: namespace,
			Help:      "Counts number of filter plan runs.",
		}),
		structuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "structures_total",
			Subsystem: "pipeline",
			Namespace: namespace,
			Help:      "Counts number of structures picked up by filter plans.",
		}),
		structuresRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "structures_rejected_total",
			Subsystem: "pipeline",
			Namespace: namespace,
			Help:      "Counts number of structures rejected by filter plans.",
		}),
		planDuration: promauto.NewSummary(prometheus.SummaryOpts{
			Name:      "plan_duration_seconds",
			Subsystem: "pipeline",
			Namespace: namespace,
			Help:      "A summary of the duration of filter plan runs.",
		}),
	}
}
