package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the session metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "blive").
	Namespace string

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the session metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = namespace }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = registry }
}

// Metrics holds the session counters. A nil *Metrics is valid and
// counts nothing.
type Metrics struct {
	framesRead     prometheus.Counter
	messagesTotal  prometheus.Counter
	messagesDrops  prometheus.Counter
	heartbeatsSent prometheus.Counter
}

// NewMetrics registers the session counters and returns them.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{
		Namespace: "blive",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)
	return &Metrics{
		framesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "frames_read_total",
			Help:      "Wire frames read from the transport.",
		}),
		messagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "messages_total",
			Help:      "Inbound messages delivered to the consumer.",
		}),
		messagesDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "message_drops_total",
			Help:      "Inbound messages dropped due to parse failures.",
		}),
		heartbeatsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "heartbeats_sent_total",
			Help:      "Keep-alive frames sent.",
		}),
	}
}

func (m *Metrics) countFrame() {
	if m != nil {
		m.framesRead.Inc()
	}
}

func (m *Metrics) countMessage() {
	if m != nil {
		m.messagesTotal.Inc()
	}
}

func (m *Metrics) countDrop() {
	if m != nil {
		m.messagesDrops.Inc()
	}
}

func (m *Metrics) countHeartbeat() {
	if m != nil {
		m.heartbeatsSent.Inc()
	}
}
