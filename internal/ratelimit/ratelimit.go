// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

// Package ratelimit provides keyed expiry stores used to throttle attempts.
//
// A key may be used once per window. Stores are passed explicitly to the
// components that need them; there is no process-wide state.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultWindow is the minimum spacing between attempts for one key.
const DefaultWindow = time.Second

// Store throttles attempts per key.
type Store interface {
	// Allow records an attempt. It returns false and the remaining wait
	// when key was already used inside the current window.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)

	// Close releases resources held by the store.
	Close() error
}

// Decision labels.
const (
	DecisionAllowed   = "allowed"
	DecisionThrottled = "throttled"
	DecisionError     = "error"
)

// Decisions counts Allow results per store kind.
// Use RegisterMetrics to register this with a Prometheus registry.
var Decisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpyard_ratelimit_decisions_total",
		Help: "Total number of rate limit decisions",
	},
	[]string{"store", "decision"},
)

// RegisterMetrics registers ratelimit metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Decisions)
}

func normalizeWindow(window time.Duration) time.Duration {
	if window <= 0 {
		return DefaultWindow
	}
	return window
}
