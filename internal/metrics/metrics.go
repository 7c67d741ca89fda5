// Package metrics exports ledger and registry activity to Prometheus.
package metrics

import (
	"achievements/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "achievements"

type Collector struct {
	Points              *prometheus.CounterVec
	Events              *prometheus.CounterVec
	Credentials         *prometheus.CounterVec
	Failures            *prometheus.CounterVec
	ReconcileMismatches prometheus.Gauge
	ReconcileRuns       prometheus.Counter
}

// New registers the collectors on reg. cmd/server passes the default
// registerer; tests pass a fresh registry.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		Points: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Points moved by the ledger, by operation.",
		}, []string{"op"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed audit events, by type.",
		}, []string{"type"}),
		Credentials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_total",
			Help:      "Credentials issued or exited.",
		}, []string{"op"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Rejected or failed operations, by operation.",
		}, []string{"op"}),
		ReconcileMismatches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_mismatched_accounts",
			Help:      "Accounts whose counters disagree with the journal at the last run.",
		}),
		ReconcileRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Completed reconciliation runs.",
		}),
	}
}

func (c *Collector) Record(ev events.Event) {
	c.Events.WithLabelValues(ev.Type).Inc()
	switch ev.Type {
	case events.TypePointsMinted:
		c.Points.WithLabelValues("mint").Add(float64(ev.Amount))
	case events.TypePointsBurned:
		c.Points.WithLabelValues("burn").Add(float64(ev.Amount))
	case events.TypePointsTransferred:
		c.Points.WithLabelValues("transfer").Add(float64(ev.Amount))
	case events.TypeCredentialIssued:
		c.Credentials.WithLabelValues("issue").Inc()
	case events.TypeCredentialExited:
		c.Credentials.WithLabelValues("exit").Add(float64(len(ev.CredentialIDs)))
	}
}

func (c *Collector) Failed(op string) {
	c.Failures.WithLabelValues(op).Inc()
}

func (c *Collector) SetReconcileMismatches(n int) {
	c.ReconcileRuns.Inc()
	c.ReconcileMismatches.Set(float64(n))
}
