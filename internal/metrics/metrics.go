// Package metrics exposes Prometheus counters for plan execution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/rangeplan/internal/plan"
)

// Outcome labels for Executions.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	PlanStructure *prometheus.CounterVec
	RowsReturned  prometheus.Counter
	Executions    *prometheus.CounterVec
}

var _ plan.StructureTimer = (*Metrics)(nil)

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	planStructure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rangeplan_plan_structure_total",
		Help: "Plan nodes seen in executed plans, by kind",
	}, []string{"kind"})

	rowsReturned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rangeplan_rows_returned_total",
		Help: "Total records returned by plan cursors",
	})

	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rangeplan_executions_total",
		Help: "Plan executions by outcome",
	}, []string{"outcome"})

	reg.MustRegister(planStructure, rowsReturned, executions)

	return &Metrics{
		PlanStructure: planStructure,
		RowsReturned:  rowsReturned,
		Executions:    executions,
	}
}

// Increment implements plan.StructureTimer.
func (m *Metrics) Increment(event plan.PlanEvent) {
	m.PlanStructure.WithLabelValues(event.String()).Inc()
}

// ObserveExecution counts one execution attempt.
func (m *Metrics) ObserveExecution(err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.Executions.WithLabelValues(outcome).Inc()
}
