// Package metrics registers the agent's prometheus collectors and
// serves them when a listen address is configured.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqagent_delivery_attempts_total",
			Help: "Outbound POST attempts by endpoint kind",
		}, []string{"kind"},
	)
	EventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqagent_events_delivered_total",
			Help: "Payloads acknowledged by the service",
		}, []string{"kind"},
	)
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqagent_events_dropped_total",
			Help: "Payloads dropped after the attempt ceiling",
		}, []string{"kind"},
	)
	DedupSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iqagent_dedup_suppressed_total",
			Help: "Events suppressed as duplicates by source",
		}, []string{"source"},
	)
	CommandsExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "iqagent_commands_executed_total",
			Help: "Server commands executed locally",
		},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		DeliveryAttempts,
		EventsDelivered,
		EventsDropped,
		DedupSuppressed,
		CommandsExecuted,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
