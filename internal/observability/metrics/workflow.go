package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkflowMetrics tracks upload workflow progress.
type WorkflowMetrics struct {
	transitions   *prometheus.CounterVec
	illegalEvents *prometheus.CounterVec
	stageErrors   *prometheus.CounterVec
	saved         prometheus.Counter
}

// NewWorkflowMetrics creates and registers workflow metrics.
func NewWorkflowMetrics(registry prometheus.Registerer) (*WorkflowMetrics, error) {
	m := &WorkflowMetrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_transitions_total",
				Help:      "Workflow state transitions",
			},
			[]string{"from", "to"},
		),
		illegalEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_illegal_events_total",
				Help:      "Events rejected in the current state",
			},
			[]string{"state", "event"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_stage_errors_total",
				Help:      "Failures by workflow stage",
			},
			[]string{"stage"},
		),
		saved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_saved_total",
			Help:      "Observations persisted to the backend",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WorkflowMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.transitions, m.illegalEvents, m.stageErrors, m.saved}
}

func (m *WorkflowMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

func (m *WorkflowMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *WorkflowMetrics) RecordTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *WorkflowMetrics) RecordIllegalEvent(state, event string) {
	m.illegalEvents.WithLabelValues(state, event).Inc()
}

func (m *WorkflowMetrics) RecordStageError(stage string) {
	m.stageErrors.WithLabelValues(stage).Inc()
}

func (m *WorkflowMetrics) RecordSaved() {
	m.saved.Inc()
}
