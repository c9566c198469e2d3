package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SagasCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_completed_total",
			Help: "Sagas that reached the Completed state",
		},
		[]string{"saga"},
	)
	SagasCompensated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_compensated_total",
			Help: "Sagas rolled back by a successful compensation",
		},
		[]string{"saga"},
	)

	// SagasInconsistent is the operational alert for failed compensations:
	// ledger and records disagree and need manual reconciliation.
	SagasInconsistent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_inconsistent_total",
			Help: "Sagas whose compensation itself failed",
		},
		[]string{"saga"},
	)

	EventPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_publish_failures_total",
			Help: "Notification events dropped after bounded retries",
		},
	)

	EmailsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_processed_total",
			Help: "Notification emails handed to the sender",
		},
	)
	EmailSendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_send_failures_total",
			Help: "Notification emails the sender rejected",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(SagasCompleted)
	prometheus.MustRegister(SagasCompensated)
	prometheus.MustRegister(SagasInconsistent)
	prometheus.MustRegister(EventPublishFailures)
	prometheus.MustRegister(EmailsProcessed)
	prometheus.MustRegister(EmailSendFailures)
}
