// Package metrics declares the Prometheus collectors of the publishing pipeline.
// Collectors register with the default registry on package load.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "letterpress"

// Open kinds.
const (
	OpenFirst   = "first"
	OpenRepeat  = "repeat"
	OpenUnknown = "unknown"
)

var (
	// EmailsTotal counts per-recipient provider calls by result (sent or failed).
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Per-recipient edition emails by delivery result",
		},
		[]string{"result"},
	)

	// EditionSendsTotal counts finished edition sends by final status.
	EditionSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edition_sends_total",
			Help:      "Edition sends by final status",
		},
		[]string{"status"},
	)

	// EditionSendDuration tracks how long a full fan-out takes.
	EditionSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "edition_send_duration_seconds",
			Help:      "Duration of an edition fan-out in seconds",
			Buckets: []float64{
				0.1, // 100ms
				0.5,
				1,
				5,
				15,
				30,
				60, // 1m
				300,
				900,
				1800, // 30m
			},
		},
		[]string{"status"},
	)

	// OpensTotal counts pixel hits by kind: first, repeat or unknown token.
	OpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opens_total",
			Help:      "Tracking pixel hits by kind",
		},
		[]string{"kind"},
	)

	// WelcomeEmailsTotal counts welcome email attempts by result.
	WelcomeEmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "welcome_emails_total",
			Help:      "Welcome emails by delivery result",
		},
		[]string{"result"},
	)

	// SchedulerTicks counts scheduler polls by outcome (ok or error).
	SchedulerTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Scheduler polls by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordEmail records one provider call.
func RecordEmail(ok bool) {
	if ok {
		EmailsTotal.WithLabelValues("sent").Inc()
		return
	}
	EmailsTotal.WithLabelValues("failed").Inc()
}

// RecordWelcome records one welcome email attempt.
func RecordWelcome(ok bool) {
	if ok {
		WelcomeEmailsTotal.WithLabelValues("sent").Inc()
		return
	}
	WelcomeEmailsTotal.WithLabelValues("failed").Inc()
}

// RecordEditionSend records a finished fan-out.
func RecordEditionSend(status string, elapsed time.Duration) {
	EditionSendsTotal.WithLabelValues(status).Inc()
	EditionSendDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordOpen records a pixel hit of the given kind.
func RecordOpen(kind string) {
	OpensTotal.WithLabelValues(kind).Inc()
}

// RecordTick records a scheduler poll.
func RecordTick(err error) {
	if err != nil {
		SchedulerTicks.WithLabelValues("error").Inc()
		return
	}
	SchedulerTicks.WithLabelValues("ok").Inc()
}
