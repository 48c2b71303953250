// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operations is the counter of Manager operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpyard_account_operations_total",
		Help: "Total number of account operations by outcome",
	},
	[]string{"operation", "outcome"},
)

// OperationDuration is the histogram of Manager operation latency.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "chirpyard_account_operation_duration_seconds",
		Help:    "Account operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// CascadeFailures counts dependent-domain cleanup failures during Delete.
var CascadeFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpyard_account_cascade_failures_total",
		Help: "Total number of failed cleanup steps during account deletion",
	},
	[]string{"domain"},
)

// RegisterMetrics registers account metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(CascadeFailures)
}

func recordOperation(operation string, outcome Outcome, started time.Time) {
	Operations.WithLabelValues(operation, outcome.String()).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
