package runtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters a Scheduler reports against. The *Metrics
// handle itself is safe to leave nil: call sites in scheduler.go guard
// with "if metrics != nil" so a Runtime built without a prometheus
// registry still runs. The fields of a non-nil handle are not checked.
type Metrics struct {
	ModelCalls     *prometheus.CounterVec
	ToolExecutions *prometheus.CounterVec
	EventAppends   prometheus.Counter
	ActiveSessions prometheus.Gauge
}

// NewMetrics registers agentrt's runtime metrics against reg and returns
// the handle scheduler.go's call sites expect. Pass a fresh
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt",
			Subsystem: "runtime",
			Name:      "model_calls_total",
			Help:      "Model calls dispatched by the scheduler, labeled by outcome.",
		}, []string{"status"}),
		ToolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt",
			Subsystem: "runtime",
			Name:      "tool_executions_total",
			Help:      "Tool executions dispatched by the scheduler, labeled by tool and outcome.",
		}, []string{"tool", "status"}),
		EventAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentrt",
			Subsystem: "runtime",
			Name:      "event_appends_total",
			Help:      "Events appended to the event store.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentrt",
			Subsystem: "runtime",
			Name:      "active_sessions",
			Help:      "Sessions currently resident in the registry.",
		}),
	}
	reg.MustRegister(m.ModelCalls, m.ToolExecutions, m.EventAppends, m.ActiveSessions)
	return m
}
