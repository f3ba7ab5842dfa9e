package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the counters exported by the sync layer. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	storeOps      *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	droppedDocs   *prometheus.CounterVec
	invitations   *prometheus.CounterVec
	overdueMarked prometheus.Counter
}

// New creates the metric vectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tandm",
			Subsystem: "docstore",
			Name:      "operations_total",
			Help:      "Document store calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tandm",
			Subsystem: "docstore",
			Name:      "operation_duration_seconds",
			Help:      "Document store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		droppedDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tandm",
			Subsystem: "decode",
			Name:      "dropped_documents_total",
			Help:      "Documents skipped by list fetches because they failed to decode.",
		}, []string{"collection"}),
		invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tandm",
			Subsystem: "invitations",
			Name:      "outcomes_total",
			Help:      "Member invitation results by outcome.",
		}, []string{"outcome"}),
		overdueMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tandm",
			Subsystem: "invoices",
			Name:      "marked_overdue_total",
			Help:      "Invoices moved to overdue by the sweeper.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.storeOps, m.storeLatency, m.droppedDocs, m.invitations, m.overdueMarked)
	}
	return m
}

func (m *Metrics) ObserveStoreOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.storeOps.WithLabelValues(op, outcome).Inc()
	m.storeLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) DocumentDropped(collection string) {
	if m == nil {
		return
	}
	m.droppedDocs.WithLabelValues(collection).Inc()
}

func (m *Metrics) InvitationOutcome(outcome string) {
	if m == nil {
		return
	}
	m.invitations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) InvoicesMarkedOverdue(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueMarked.Add(float64(n))
}
