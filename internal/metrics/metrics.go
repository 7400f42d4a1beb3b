package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Account metrics
	NewUsersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_new_users_total",
		Help: "Total number of users created through OTP verification.",
	})
	TotalUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_total_users",
		Help: "Total number of registered users in the application.",
	})
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"status"}) // status: "success" or "failed"
	OTPSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_sent_total",
		Help: "Total number of signup codes issued, by email delivery outcome.",
	}, []string{"delivery"}) // delivery: "sent" or "failed"
	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_verifications_total",
		Help: "Total number of OTP verification attempts.",
	}, []string{"status"})

	// Catalog and feedback
	CatalogWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_catalog_writes_total",
		Help: "Total number of crop and pest writes.",
	}, []string{"kind", "op"})
	FeedbackSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_feedback_submitted_total",
		Help: "Total number of feedback submissions by category.",
	}, []string{"category"})

	// Identification and chat
	IdentificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_identifications_total",
		Help: "Total number of identification attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	IdentificationDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "app_identification_duration_seconds",
		Help:    "Time spent in each identification provider.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 45},
	}, []string{"provider"})
	ChatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_chat_requests_total",
		Help: "Total number of chat assistant requests.",
	}, []string{"kind", "outcome"}) // kind: "text" or "image"
)
