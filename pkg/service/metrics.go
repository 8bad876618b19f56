package service

import (
	"strings"

	"github.com/origamihpc/origami/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ServiceMetrics struct {
	serviceInfoGauge         prometheus.GaugeVec
	jobsCreatedCounter       prometheus.Counter
	jobsDeletedCounter       prometheus.Counter
	createJobDuration        prometheus.Summary
	createJobSuccessDuration prometheus.Summary
	deleteJobDuration        prometheus.Summary
	deleteJobSuccessDuration prometheus.Summary
}

func (s *Service) initServiceMetrics() {
	namespace := strings.Replace(config.Namespace, "-", "_", -1)

	m := ServiceMetrics{
		serviceInfoGauge: *promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "folding_service_info",
			Namespace: namespace,
			Help:      "Information about the submission service.",
		}, []string{"version", "namespace"}),

		jobsCreatedCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "folding_service_jobs_created_total",
			Namespace: namespace,
			Help:      "Counts number of folding jobs created.",
		}),

		jobsDeletedCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "folding_service_jobs_deleted_total",
			Namespace: namespace,
			Help:      "Counts number of folding jobs deleted.",
		}),

		createJobDuration: promauto.NewSummary(prometheus.SummaryOpts{
			Name:      "folding_service_create_job_duration_seconds",
			Namespace: namespace,
			Help:      "A summary of the duration of creating folding job.",
		}),

		createJobSuccessDuration: promauto.NewSummary(prometheus.SummaryOpts{
			Name:      "folding_service_create_job_success_duration_seconds",
			Namespace: namespace,
			Help:      "A summary of the duration of successfully creating folding job.",
		}),

		deleteJobDuration: promauto.NewSummary(prometheus.SummaryOpts{
			Name:      "folding_service_delete_job_duration_seconds",
			Namespace: namespace,
			Help:      "A summary of the duration of deleting folding job.",
		}),

		deleteJobSuccessDuration: promauto.NewSummary(prometheus.SummaryOpts{
			Name:      "folding_service_delete_job_success_duration_seconds",
			Namespace: namespace,
			Help:      "A summary of the duration of successfully deleting folding job.",
		}),
	}
	m.serviceInfoGauge.WithLabelValues(config.Version, config.Namespace).Set(1)
	s.Metrics = m
}
