// Package metrics exports controller activity as prometheus metrics. The
// status server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/knx-actuator/internal/logic"
)

const prometheusNamespace = "knxact"

var (
	events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "events_total",
			Help:      "controller events by type",
		},
		[]string{"type"})

	programmingMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "programming_mode",
			Help:      "programming mode active (bool)",
		})

	sleepDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "sleep_decisions_total",
			Help:      "sleep scheduler decisions by reason",
		},
		[]string{"reason"})

	sleepSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "sleep_seconds_total",
			Help:      "time spent suspended",
		})

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "commands_total",
			Help:      "remote commands by source and kind",
		},
		[]string{"source", "kind"})

	lastWake = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "last_wake_timestamp_seconds",
			Help:      "unix time of the last wake from suspend",
		})
)

func init() {
	prometheus.MustRegister(events)
	prometheus.MustRegister(programmingMode)
	prometheus.MustRegister(sleepDecisions)
	prometheus.MustRegister(sleepSeconds)
	prometheus.MustRegister(commands)
	prometheus.MustRegister(lastWake)
}

// Observe records one controller event.
func Observe(e logic.Event) {
	events.With(prometheus.Labels{"type": string(e.Type)}).Inc()
	switch e.Type {
	case logic.EventProgrammingModeEntered:
		programmingMode.Set(1)
	case logic.EventProgrammingModeExited:
		programmingMode.Set(0)
	case logic.EventSleep:
		sleepSeconds.Add(e.Duration.Seconds())
		lastWake.Set(float64(e.Timestamp.Add(e.Duration).Unix()))
	}
}

// ObserveSleep records the outcome of one sleep attempt.
func ObserveSleep(d logic.SleepDecision) {
	sleepDecisions.With(prometheus.Labels{"reason": string(d.Reason)}).Inc()
}

// ObserveCommand counts a remote command. source is "mqtt" or "serial".
func ObserveCommand(source, kind string) {
	commands.With(prometheus.Labels{"source": source, "kind": kind}).Inc()
}
