package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/metrics"
	"github.com/roach88/rangeplan/internal/plan"
	"github.com/roach88/rangeplan/internal/plancache"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/record"
)

// Engine executes plans against one record store.
//
// Thread-safety: Execute may be called from any goroutine. Each returned
// Execution must be consumed by a single goroutine. Backends that hold a
// single connection (sqlitekv) serialize executions themselves.
type Engine struct {
	store   *record.Store
	ids     IDGenerator
	seq     *Sequence
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   *plancache.Cache
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the execution ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics reports plan structure, rows and outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPlanCache interns executed plans in c, so repeated executions of
// structurally equal plans share one instance.
func WithPlanCache(c *plancache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithSequence sets the sequence used to stamp executions.
func WithSequence(s *Sequence) Option {
	return func(e *Engine) { e.seq = s }
}

// New creates an Engine over store.
func New(store *record.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		ids:    UUIDv7Generator{},
		seq:    NewSequence(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the record store the engine executes against.
func (e *Engine) Store() *record.Store { return e.store }

// Execute opens p. ec may be nil for plans without parameters; continuation
// is nil for a fresh execution.
//
// Errors from translation or the store are returned as *ExecutionError.
func (e *Engine) Execute(ctx context.Context, p plan.Plan, ec *query.EvaluationContext, continuation []byte, props kv.ExecuteProperties) (*Execution, error) {
	if e.cache != nil {
		p = e.cache.Intern(p)
	}

	id := e.ids.Generate()
	seq := e.seq.Next()
	planHash := fmt.Sprintf("%016x", p.PlanHash())
	logger := e.logger.With("execution", id, "seq", seq)

	if e.metrics != nil {
		p.LogPlanStructure(e.metrics)
	}

	logger.Debug("execution starting",
		"plan", p.String(),
		"plan_hash", planHash,
		"resumed", continuation != nil,
		"row_limit", props.ReturnedRowLimit,
		"byte_limit", props.ScannedBytesLimit,
		"time_limit", props.TimeLimit,
	)

	cur, err := p.Execute(ctx, e.store, ec, continuation, props)
	if err != nil {
		ee := newExecutionError(err, id, planHash)
		e.observe(ee)
		logger.Error("execution failed to open",
			"code", ee.Code,
			"error", err,
		)
		return nil, ee
	}

	return &Execution{
		ID:       id,
		Seq:      seq,
		Plan:     p,
		PlanHash: planHash,
		cur:      cur,
		engine:   e,
		logger:   logger,
	}, nil
}

func (e *Engine) observe(err error) {
	if e.metrics != nil {
		e.metrics.ObserveExecution(err)
	}
}
