package planner

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rangeplan/internal/plan"
	"github.com/roach88/rangeplan/internal/query"
)

// ErrInJoinUnplannable is returned when a request carries an IN list and the
// configuration does not allow rewriting it as a union.
var ErrInJoinUnplannable = errors.New("IN predicate cannot be planned as an in-join")

// ScanRequest describes a scan over the primary key.
//
// Equality constrains the leading key fields. In, when set, lists the
// accepted values of the next key field. Inequality bounds the field after
// that (or after the equality prefix when In is empty).
type ScanRequest struct {
	Equality   []query.Comparison
	In         []query.Operand
	Inequality []query.Comparison
	Reverse    bool
}

// Planner turns scan requests into plans under a fixed configuration.
type Planner struct {
	cfg    Configuration
	logger *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// New returns a planner for cfg.
func New(cfg Configuration, opts ...Option) *Planner {
	p := &Planner{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configuration returns the planner's configuration.
func (p *Planner) Configuration() Configuration { return p.cfg }

// PrefersIndex reports whether an applicable index scan should win over a
// range scan. additionalFilter is true when the index satisfies a condition
// the range scan would have to filter.
func (p *Planner) PrefersIndex(additionalFilter bool) bool {
	return additionalFilter || p.cfg.indexScanPreference == PreferIndex
}

// PlanScan builds a ScanPlan for req. With an IN list the result is a
// UnionPlan of one equality scan per distinct value, in list order, if the
// configuration allows the rewrite; otherwise ErrInJoinUnplannable.
func (p *Planner) PlanScan(req ScanRequest) (plan.Plan, error) {
	if len(req.In) == 0 {
		comparisons, err := query.NewScanComparisons(req.Equality, req.Inequality)
		if err != nil {
			return nil, fmt.Errorf("plan scan: %w", err)
		}
		return plan.NewScanPlan(comparisons, req.Reverse), nil
	}

	if !p.cfg.attemptFailedInJoinAsOr {
		return nil, fmt.Errorf("%w: %d values and IN-as-OR rewriting is disabled", ErrInJoinUnplannable, len(req.In))
	}

	dedup := plan.NewDeduplicator()
	children := make([]plan.Plan, 0, len(req.In))
	for i, op := range req.In {
		if op == nil {
			return nil, fmt.Errorf("plan scan: IN value %d is missing", i)
		}
		equality := append(append([]query.Comparison(nil), req.Equality...), query.Equals{Operand: op})
		comparisons, err := query.NewScanComparisons(equality, req.Inequality)
		if err != nil {
			return nil, fmt.Errorf("plan scan: IN value %d: %w", i, err)
		}
		child, seen := dedup.Intern(plan.NewScanPlan(comparisons, req.Reverse))
		if seen {
			continue
		}
		children = append(children, child)
	}

	if len(children) == 1 {
		return children[0], nil
	}
	union, err := plan.NewUnionPlan(children...)
	if err != nil {
		return nil, fmt.Errorf("plan scan: %w", err)
	}
	p.logger.Debug("rewrote IN predicate as union",
		"values", len(req.In),
		"children", len(children),
	)
	return union, nil
}
