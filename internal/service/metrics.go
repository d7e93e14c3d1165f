package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_processed_total",
			Help: "Total number of webhook deliveries handled successfully",
		},
		[]string{"event_type"},
	)

	deliveriesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_failed_total",
			Help: "Total number of webhook deliveries whose handler returned an error",
		},
		[]string{"event_type"},
	)

	deliveriesRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_retried_total",
			Help: "Total number of webhook deliveries pushed to the retry queue",
		},
		[]string{"event_type"},
	)
)
