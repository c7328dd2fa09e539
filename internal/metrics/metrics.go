// Package metrics exposes session counters and gauges for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livescribe"

// Metrics holds the session collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Commands         *prometheus.CounterVec
	CapabilityCalls  *prometheus.CounterVec
	Results          *prometheus.CounterVec
	LinesAppended    prometheus.Counter
	CapabilityErrors *prometheus.CounterVec
	CapabilityEnds   prometheus.Counter
	Listening        prometheus.Gauge
	Muted            prometheus.Gauge
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Owner commands processed by the session controller",
		}, []string{"command"}),
		CapabilityCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_calls_total",
			Help:      "Start and stop requests issued to the recognizer",
		}, []string{"call"}),
		Results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Recognition results received, by kind",
		}, []string{"kind"}),
		LinesAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_lines_total",
			Help:      "Finalized transcript lines appended",
		}),
		CapabilityErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_errors_total",
			Help:      "Recognizer errors, by code",
		}, []string{"code"}),
		CapabilityEnds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_ends_total",
			Help:      "Recognizer end events",
		}),
		Listening: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listening",
			Help:      "1 while the session is listening",
		}),
		Muted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "muted",
			Help:      "1 while the session is muted",
		}),
	}
}

// Registry returns the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCommand counts one owner command.
func (m *Metrics) RecordCommand(command string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command).Inc()
}

// RecordCapabilityCall counts one start or stop issued to the recognizer.
func (m *Metrics) RecordCapabilityCall(call string) {
	if m == nil {
		return
	}
	m.CapabilityCalls.WithLabelValues(call).Inc()
}

// RecordResult counts a result batch by whether it carried interim and final text.
func (m *Metrics) RecordResult(hasInterim bool, hasFinal bool) {
	if m == nil {
		return
	}
	if hasInterim {
		m.Results.WithLabelValues("interim").Inc()
	}
	if hasFinal {
		m.Results.WithLabelValues("final").Inc()
	}
}

// RecordLine counts an appended transcript line.
func (m *Metrics) RecordLine() {
	if m == nil {
		return
	}
	m.LinesAppended.Inc()
}

// RecordError counts a recognizer error.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.CapabilityErrors.WithLabelValues(code).Inc()
}

// RecordEnd counts a recognizer end event.
func (m *Metrics) RecordEnd() {
	if m == nil {
		return
	}
	m.CapabilityEnds.Inc()
}

// SetState mirrors the session flags into gauges.
func (m *Metrics) SetState(listening bool, muted bool) {
	if m == nil {
		return
	}
	m.Listening.Set(boolValue(listening))
	m.Muted.Set(boolValue(muted))
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
