package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
)

const namespace = "mcp_guard"

// Metrics holds all Prometheus metrics for mcp-guard.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	GateDecisions   *prometheus.CounterVec
	GateRejections  *prometheus.CounterVec
	SecurityEvents  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		GateDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Admission decisions by outcome",
			},
			[]string{"outcome"}, // outcome=admitted/rejected
		),
		GateRejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_rejections_total",
				Help:      "Rejected requests by error kind",
			},
			[]string{"kind"},
		),
		SecurityEvents: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "security_events_total",
				Help:      "Security events appended to the audit log",
			},
			[]string{"event", "severity"},
		),
	}
}

// RegisterRateLimitKeys exposes the number of live rate limit windows as a gauge.
func RegisterRateLimitKeys(reg prometheus.Registerer, size func() int) {
	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_keys",
			Help:      "Number of active rate limit keys",
		},
		func() float64 { return float64(size()) },
	)
}

// countingEventLog counts every appended event before delegating.
type countingEventLog struct {
	audit.EventLog
	counter *prometheus.CounterVec
}

// InstrumentEventLog wraps log so each appended event increments
// security_events_total.
func InstrumentEventLog(log audit.EventLog, m *Metrics) audit.EventLog {
	return &countingEventLog{EventLog: log, counter: m.SecurityEvents}
}

func (l *countingEventLog) Append(event audit.SecurityEvent) {
	l.counter.WithLabelValues(event.Kind, string(event.Severity)).Inc()
	l.EventLog.Append(event)
}
