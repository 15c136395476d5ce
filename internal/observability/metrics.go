// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/authgate/authgate/internal/auth"
)

// Metrics holds the AuthGate Prometheus collectors.
type Metrics struct {
	AuthEvents     *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	NotifierErrors prometheus.Counter
	PrunedRecords  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_auth_events_total",
			Help: "Committed auth lifecycle events by type",
		}, []string{"type"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authgate_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		NotifierErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_notifier_errors_total",
			Help: "Verification or reset links that could not be queued for delivery",
		}),
		PrunedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_pruned_records_total",
			Help: "Expired records removed by kind",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.AuthEvents, m.HTTPRequests, m.HTTPDuration, m.NotifierErrors, m.PrunedRecords)
	return m
}

// RecordAuthEvent counts event. Its signature matches an event bus handler.
func (m *Metrics) RecordAuthEvent(_ context.Context, event auth.Event) error {
	m.AuthEvents.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordPruned adds n removed records of kind.
func (m *Metrics) RecordPruned(kind string, n int64) {
	if n > 0 {
		m.PrunedRecords.WithLabelValues(kind).Add(float64(n))
	}
}

// InstrumentNotifier wraps next so failed handoffs are counted.
func (m *Metrics) InstrumentNotifier(next auth.Notifier) auth.Notifier {
	return &countingNotifier{next: next, failures: m.NotifierErrors}
}

type countingNotifier struct {
	next     auth.Notifier
	failures prometheus.Counter
}

func (n *countingNotifier) SendVerificationLink(ctx context.Context, user *auth.User, link string) error {
	err := n.next.SendVerificationLink(ctx, user, link)
	if err != nil {
		n.failures.Inc()
	}
	return err
}

func (n *countingNotifier) SendPasswordResetLink(ctx context.Context, user *auth.User, link string) error {
	err := n.next.SendPasswordResetLink(ctx, user, link)
	if err != nil {
		n.failures.Inc()
	}
	return err
}
