package placement

import (
	"strings"

	"github.com/origamihpc/origami/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PlacementManagerMetrics struct {
	placementAlgoDuration prometheus.Summary
	reboundDevicesGauge   prometheus.Gauge
	freeDevicesGauge      prometheus.Gauge
}

func (pm *PlacementManager) initPlacementManagerMetrics() {
	subsystem := strings.Replace(pm.SchedulerID, "-", "_", -1)
	namespace := strings.Replace(config.Namespace, "-", "_", -1)

	m := PlacementManagerMetrics{
		placementAlgoDuration: promauto.NewSummary(prometheus.SummaryOpts{
			Name:      "scheduler_placement_algorithm_duration_seconds",
			Subsystem: subsystem,
			Namespace: namespace,
			Help:      "A summary of the duration of placement algorithm.",
		}),
		reboundDevicesGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "scheduler_placement_devices_rebound",
			Subsystem: subsystem,
			Namespace: namespace,
			Help:      "Number of devices bound to a different job in last rescheduling.",
		}),
		freeDevicesGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "scheduler_placement_devices_free",
			Subsystem: subsystem,
			Namespace: namespace,
			Help:      "Number of free GPU devices after last rescheduling.",
		}),
	}

	pm.metrics = m
}
