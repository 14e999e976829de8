package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/rangeplan/internal/config"
	"github.com/roach88/rangeplan/internal/engine"
	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/metrics"
	"github.com/roach88/rangeplan/internal/plan"
	"github.com/roach88/rangeplan/internal/plancache"
	"github.com/roach88/rangeplan/internal/query"
	"github.com/roach88/rangeplan/internal/record"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Params       []string
	Continuation string
	Limit        int
	Metrics      bool

	// IDGenerator overrides the execution ID source (for testing).
	IDGenerator engine.IDGenerator
}

// ScanResult is one page of records.
type ScanResult struct {
	ExecutionID  string          `json:"execution_id"`
	PlanHash     string          `json:"plan_hash"`
	Records      []record.Record `json:"records"`
	Reason       string          `json:"reason"`
	Continuation string          `json:"continuation,omitempty"`
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan <plan.cue>",
		Short: "Execute a plan against the configured store",
		Long: `Execute a plan description against the configured store and print one
page of records. The page ends when the plan is exhausted or a limit from
the execute config section (or --limit) is hit; pass the printed
continuation back with --continuation to read the next page.

Exit codes:
  0 - Page read
  1 - Execution failed (unbound parameter, bad continuation, store error)
  2 - Command error (bad flags, plan does not compile, store not opened)

Examples:
  rangeplan scan plan.cue --param lo=10 --limit 100
  rangeplan scan plan.cue --limit 100 --continuation 01158000000000000005`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "bind a parameter (name=value), repeatable")
	cmd.Flags().StringVar(&opts.Continuation, "continuation", "", "hex continuation from a previous page")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "returned row limit (overrides execute.returned_row_limit)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics to stderr after the scan")

	return cmd
}

func runScan(ctx context.Context, opts *ScanOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())
	formatter := opts.formatter(cmd)

	compiled, err := compilePlan(path, cfg, logger)
	if err != nil {
		return err
	}
	ec, err := parseParams(compiled.Params, opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --param", err)
	}
	continuation, err := parseContinuation(opts.Continuation)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --continuation", err)
	}
	props, err := cfg.ExecuteProperties()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid execute configuration", err)
	}
	if opts.Limit > 0 {
		props.ReturnedRowLimit = opts.Limit
	}

	reg := prometheus.NewRegistry()
	eng, cleanup, err := newEngine(cfg, logger,
		engine.WithMetrics(metrics.NewMetrics(reg)),
		withIDs(opts.IDGenerator),
	)
	if err != nil {
		return err
	}
	defer cleanup()

	result, execErr := scanPage(ctx, eng, compiled.Plan, ec, continuation, props)
	if opts.Metrics {
		if err := writeMetrics(formatter.GetErrWriter(), reg); err != nil {
			logger.Warn("failed to write metrics", "error", err)
		}
	}
	if execErr != nil {
		var ee *engine.ExecutionError
		if errors.As(execErr, &ee) {
			_ = formatter.Error(string(ee.Code), ee.Err.Error(), map[string]string{
				"execution_id": ee.ExecutionID,
				"plan_hash":    ee.PlanHash,
			})
		}
		return WrapExitError(ExitFailure, "execution failed", execErr)
	}

	return formatter.Success(result, func(w io.Writer) {
		for _, r := range result.Records {
			fmt.Fprintf(w, "%s %s\n", r.PrimaryKey, ir.Format(r.Fields))
		}
		fmt.Fprintf(w, "\n%d record(s), %s\n", len(result.Records), result.Reason)
		if result.Continuation != "" {
			fmt.Fprintf(w, "continuation: %s\n", result.Continuation)
		}
	})
}

func withIDs(ids engine.IDGenerator) engine.Option {
	return func(e *engine.Engine) {
		if ids != nil {
			engine.WithIDGenerator(ids)(e)
		}
	}
}

// newEngine opens the configured store and builds an engine over it with
// the configured plan cache. extra options apply last.
func newEngine(cfg *config.Config, logger *slog.Logger, extra ...engine.Option) (*engine.Engine, func(), error) {
	st, err := cfg.OpenStore(logger)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	opts := []engine.Option{engine.WithLogger(logger)}
	var cache *plancache.Cache
	if cfg.PlanCache.MaxEntries > 0 {
		cache, err = plancache.New(cfg.PlanCache.MaxEntries)
		if err != nil {
			_ = st.Close()
			return nil, nil, WrapExitError(ExitCommandError, "failed to create plan cache", err)
		}
		opts = append(opts, engine.WithPlanCache(cache))
	}
	opts = append(opts, extra...)
	cleanup := func() {
		if cache != nil {
			_ = cache.Close()
		}
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}
	return engine.New(record.NewStore(st, nil), opts...), cleanup, nil
}

func scanPage(ctx context.Context, eng *engine.Engine, p plan.Plan, ec *query.EvaluationContext, continuation []byte, props kv.ExecuteProperties) (*ScanResult, error) {
	x, err := eng.Execute(ctx, p, ec, continuation, props)
	if err != nil {
		return nil, err
	}
	records, err := x.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []record.Record{}
	}
	result := &ScanResult{
		ExecutionID: x.ID,
		PlanHash:    x.PlanHash,
		Records:     records,
		Reason:      x.NoNextReason().String(),
	}
	if c := x.Continuation(); c != nil {
		result.Continuation = hex.EncodeToString(c)
	}
	return result, nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
