// Prometheus collectors for the control host
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "galaxy"

// Metrics holds every collector the host exports. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	Invocations   *prometheus.CounterVec
	CommandsSent  *prometheus.CounterVec
	SinkErrors    *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	PlanOutputs   prometheus.Histogram
	DeviceUp      prometheus.Gauge
	Reconnects    prometheus.Counter
	Feedback      *prometheus.CounterVec
	SurfaceEvents *prometheus.CounterVec
}

// New registers the host collectors plus the Go runtime and process
// collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Invocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_invocations_total",
			Help:      "Action invocations by action and result status",
		}, []string{"action", "status"}),
		CommandsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Commands accepted by the device, by action",
		}, []string{"action"}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Batches that failed part way, by action",
		}, []string{"action"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Wall time of an action invocation",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"action"}),
		PlanOutputs: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_outputs",
			Help:      "Outputs covered by each array plan",
			Buckets:   prometheus.LinearBuckets(4, 4, 8),
		}),
		DeviceUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_connected",
			Help:      "1 while the processor control connection is open",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_connects_total",
			Help:      "Successful connections to the processor",
		}),
		Feedback: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_lines_total",
			Help:      "Feedback lines received, by whether the state store used them",
		}, []string{"result"}),
		SurfaceEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surface_events_total",
			Help:      "Control-surface messages that matched a binding",
		}, []string{"binding"}),
	}
}

// ObserveInvocation records one finished action run.
func (m *Metrics) ObserveInvocation(action, status string, sent int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(action, status).Inc()
	if sent > 0 {
		m.CommandsSent.WithLabelValues(action).Add(float64(sent))
	}
	m.Duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveSinkError counts a batch that the device did not fully accept.
func (m *Metrics) ObserveSinkError(action string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(action).Inc()
}

// ObservePlan records the output count of a built plan.
func (m *Metrics) ObservePlan(outputs int) {
	if m == nil {
		return
	}
	m.PlanOutputs.Observe(float64(outputs))
}

// SetConnected tracks the device link state.
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.DeviceUp.Set(1)
		m.Reconnects.Inc()
		return
	}
	m.DeviceUp.Set(0)
}

// ObserveFeedback counts one feedback line.
func (m *Metrics) ObserveFeedback(applied bool) {
	if m == nil {
		return
	}
	result := "ignored"
	if applied {
		result = "applied"
	}
	m.Feedback.WithLabelValues(result).Inc()
}

// ObserveSurface counts a matched control-surface binding.
func (m *Metrics) ObserveSurface(binding string) {
	if m == nil {
		return
	}
	m.SurfaceEvents.WithLabelValues(binding).Inc()
}
