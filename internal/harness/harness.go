package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rangeplan/internal/compiler"
	"github.com/roach88/rangeplan/internal/engine"
	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/kv/badgerkv"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/record"
	"github.com/roach88/rangeplan/internal/testutil"
	"github.com/roach88/rangeplan/internal/tuple"
)

// maxPages stops a run whose continuations never reach the end.
const maxPages = 10000

// OpenFunc opens the store a scenario runs against. The harness closes it.
type OpenFunc func() (kv.Store, error)

// InMemoryBadger is the default OpenFunc.
func InMemoryBadger() (kv.Store, error) {
	return badgerkv.Open(badgerkv.Config{
		InMemory: true,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// Harness runs one scenario against one store.
type Harness struct {
	records *record.Store
	engine  *engine.Engine
	logger  *slog.Logger
}

// Run executes a scenario in a fresh in-memory store and returns the result.
//
// Execution flow:
//  1. Open the store and load the scenario's records
//  2. Compile the plan description and merge the scenario's params
//  3. Execute page by page until the continuation runs out
//  4. Check the expectations
func Run(scenario *Scenario) (*Result, error) {
	return RunWith(context.Background(), scenario, InMemoryBadger)
}

// RunWith is Run with a caller-chosen store.
//
// The returned error covers setup failures only. An execution error the
// scenario did not expect is reported in Result.Errors.
func RunWith(ctx context.Context, scenario *Scenario, open OpenFunc) (*Result, error) {
	compiled, err := compiler.CompileFile(scenario.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to compile plan: %w", err)
	}
	ec, err := scenarioParams(compiled.Params, scenario.Params)
	if err != nil {
		return nil, err
	}

	st, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	executionID := scenario.ExecutionID
	if executionID == "" {
		executionID = "test-execution"
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rs := record.NewStore(st, nil)
	h := &Harness{
		records: rs,
		engine: engine.New(rs,
			engine.WithIDGenerator(testutil.NewFixedIDGenerator(executionID)),
			engine.WithLogger(logger),
		),
		logger: logger,
	}

	if err := h.load(ctx, scenario.Records); err != nil {
		return nil, err
	}

	result := NewResult()
	result.Plan = compiled.Plan.String()
	result.PlanHash = fmt.Sprintf("%016x", compiled.Plan.PlanHash())
	result.ExecutionID = executionID

	props := kv.ExecuteProperties{
		ReturnedRowLimit:  scenario.PageSize,
		ScannedBytesLimit: scenario.ByteLimit,
	}
	if err := h.page(ctx, compiled, ec, props, result); err != nil {
		return nil, err
	}

	for _, msg := range CheckExpectation(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

// scenarioParams layers the scenario's params over the plan file's.
func scenarioParams(base *query.EvaluationContext, params map[string]any) (*query.EvaluationContext, error) {
	if len(params) == 0 {
		return base, nil
	}
	ec := base
	if ec == nil {
		ec = query.EmptyContext()
	}
	for name, raw := range params {
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("params.%s: %w", name, err)
		}
		ec = ec.WithBinding(name, v)
	}
	return ec, nil
}

func (h *Harness) load(ctx context.Context, specs []RecordSpec) error {
	for i, spec := range specs {
		r, err := spec.Record()
		if err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
		if err := h.records.SaveRecord(ctx, r); err != nil {
			return fmt.Errorf("records[%d]: failed to save: %w", i, err)
		}
	}
	h.logger.Info("records loaded", "count", len(specs))
	return nil
}

// page executes until the plan is exhausted. An execution error ends the
// run and is recorded as the result's error code.
func (h *Harness) page(ctx context.Context, compiled *compiler.Compiled, ec *query.EvaluationContext, props kv.ExecuteProperties, result *Result) error {
	var continuation []byte
	for page := 1; page <= maxPages; page++ {
		x, err := h.engine.Execute(ctx, compiled.Plan, ec, continuation, props)
		if err != nil {
			return recordFailure(result, err)
		}
		records, err := x.Collect(ctx)
		if err != nil {
			return recordFailure(result, err)
		}

		event := PageEvent{
			Page:      page,
			Seq:       x.Seq,
			Keys:      keysOf(records),
			Reason:    x.NoNextReason().String(),
			Resumable: x.Continuation() != nil,
		}
		result.Trace = append(result.Trace, event)
		h.logger.Info("page executed",
			"page", page,
			"rows", len(records),
			"reason", event.Reason,
		)

		if !event.Resumable {
			return nil
		}
		if len(records) == 0 {
			result.AddError(fmt.Sprintf("page %d: no rows returned but continuation offered (%s)", page, event.Reason))
			return nil
		}
		continuation = x.Continuation()
	}
	result.AddError(fmt.Sprintf("plan not exhausted after %d pages", maxPages))
	return nil
}

func recordFailure(result *Result, err error) error {
	var ee *engine.ExecutionError
	if !errors.As(err, &ee) {
		return err
	}
	result.ErrorCode = string(ee.Code)
	return nil
}

func keysOf(records []record.Record) []tuple.Tuple {
	keys := make([]tuple.Tuple, len(records))
	for i, r := range records {
		keys[i] = r.PrimaryKey
	}
	return keys
}
