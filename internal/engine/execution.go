package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/plan"
	"github.com/roach88/rangeplan/internal/record"
)

// Execution is an open plan cursor tagged with its execution ID.
type Execution struct {
	ID       string
	Seq      int64
	Plan     plan.Plan
	PlanHash string

	cur    plan.Cursor
	engine *Engine
	logger *slog.Logger

	rows   int
	err    error
	closed bool
}

var _ plan.Cursor = (*Execution)(nil)

// Next advances to the next record.
func (x *Execution) Next(ctx context.Context) bool {
	if x.closed || x.err != nil {
		return false
	}
	if x.cur.Next(ctx) {
		x.rows++
		if x.engine.metrics != nil {
			x.engine.metrics.RowsReturned.Inc()
		}
		return true
	}
	if err := x.cur.Err(); err != nil {
		x.err = newExecutionError(err, x.ID, x.PlanHash)
	}
	return false
}

// Record returns the current record.
func (x *Execution) Record() record.Record { return x.cur.Record() }

// Err returns the first error, as *ExecutionError.
func (x *Execution) Err() error { return x.err }

// Continuation resumes after the last record returned. It is nil once the
// plan is exhausted.
func (x *Execution) Continuation() []byte { return x.cur.Continuation() }

// NoNextReason reports why Next returned false.
func (x *Execution) NoNextReason() kv.NoNextReason { return x.cur.NoNextReason() }

// Rows is the number of records returned so far.
func (x *Execution) Rows() int { return x.rows }

// Close releases the cursor and records the outcome. Calling it twice is a no-op.
func (x *Execution) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	err := x.cur.Close()
	x.engine.observe(x.err)
	if x.err != nil {
		x.logger.Error("execution failed",
			"rows", x.rows,
			"error", x.err,
		)
		return err
	}
	x.logger.Debug("execution finished",
		"rows", x.rows,
		"reason", x.cur.NoNextReason().String(),
		"resumable", x.cur.Continuation() != nil,
	)
	return err
}

// Collect drains the execution and closes it.
func (x *Execution) Collect(ctx context.Context) ([]record.Record, error) {
	var out []record.Record
	for x.Next(ctx) {
		out = append(out, x.Record())
	}
	closeErr := x.Close()
	if x.err != nil {
		return out, x.err
	}
	return out, closeErr
}
