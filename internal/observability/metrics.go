// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	AuthOperations *prometheus.CounterVec
	AuthDuration   *prometheus.HistogramVec
	Lockouts       prometheus.Counter
	Notifications  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squadz_auth_operations_total",
				Help: "Account lifecycle operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AuthDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "squadz_auth_operation_duration_seconds",
				Help:    "Latency of account lifecycle operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squadz_auth_lockouts_total",
			Help: "Accounts locked after repeated password failures",
		}),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squadz_notifications_total",
				Help: "Notification deliveries by kind and status",
			},
			[]string{"kind", "status"},
		),
	}
	reg.MustRegister(m.AuthOperations, m.AuthDuration, m.Lockouts, m.Notifications)
	return m
}

// ObserveOperation records one finished operation.
func (m *Metrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AuthOperations.WithLabelValues(operation, outcome).Inc()
	m.AuthDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordLockout counts an account lock.
func (m *Metrics) RecordLockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

// RecordNotification counts a delivery attempt.
func (m *Metrics) RecordNotification(kind, status string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, status).Inc()
}
