// Package metrics declares the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditbot_webhooks_total",
		Help: "Inbound webhook deliveries by source and result",
	}, []string{"source", "result"})

	CreditAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditbot_credit_adjustments_total",
		Help: "Applied credit ledger mutations by reason",
	}, []string{"reason"})

	TasksSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditbot_tasks_swept_total",
		Help: "Stale processing tasks failed and refunded by the sweeper",
	})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditbot_retries_total",
		Help: "Retried calls by target",
	}, []string{"target"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "creditbot_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route", "status"})
)
