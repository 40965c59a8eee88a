package metrics

import "github.com/prometheus/client_golang/prometheus"

// NotificationMetrics tracks deliveries by the event consumers.
type NotificationMetrics struct {
	deliveries *prometheus.CounterVec
	dropped    prometheus.Counter
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry prometheus.Registerer) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_deliveries_total",
				Help:      "Observation notifications by channel and outcome",
			},
			[]string{"channel", "status"}, // channel: journal, push, mqtt
		),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_bus_dropped_total",
			Help:      "Events dropped because the bus buffer was full",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.deliveries.Describe(ch)
	m.dropped.Describe(ch)
}

func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.deliveries.Collect(ch)
	m.dropped.Collect(ch)
}

// RecordDelivery records one consumer delivery.
func (m *NotificationMetrics) RecordDelivery(channel string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.deliveries.WithLabelValues(channel, status).Inc()
}

// RecordDropped records an event dropped by TryPublish.
func (m *NotificationMetrics) RecordDropped() {
	m.dropped.Inc()
}
