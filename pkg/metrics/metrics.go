package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probuild_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// NotificationsCreated counts notifications persisted per priority.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probuild_notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"priority"},
	)

	// InvitationOutcomes counts invitation resolutions (accepted|declined|expired).
	InvitationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probuild_invitation_outcomes_total",
			Help: "Total number of project invitation resolutions",
		},
		[]string{"outcome"},
	)

	// MailDeliveries counts outbound email attempts by result (sent|logged|failed).
	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probuild_mail_deliveries_total",
			Help: "Total number of outbound email delivery attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "probuild_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "probuild_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
