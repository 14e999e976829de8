package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rangeplan/internal/compiler"
	"github.com/roach88/rangeplan/internal/config"
	"github.com/roach88/rangeplan/internal/explain"
	"github.com/roach88/rangeplan/internal/plan"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	DOT bool
}

// ExplainResult describes a compiled plan.
type ExplainResult struct {
	Plan        string         `json:"plan"`
	PlanHash    string         `json:"plan_hash"`
	Complexity  int            `json:"complexity"`
	Reverse     bool           `json:"reverse"`
	FullScan    bool           `json:"full_scan"`
	UsedIndexes []string       `json:"used_indexes"`
	Graph       *explain.Graph `json:"graph"`
	DOT         string         `json:"dot,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <plan.cue>",
		Short: "Compile a plan description and show its structure",
		Long: `Compile a CUE plan description and print the plan, its hash and its
explain graph. With --dot the graph is printed in Graphviz DOT.

Examples:
  rangeplan explain plan.cue
  rangeplan explain plan.cue --dot | dot -Tsvg > plan.svg
  rangeplan explain plan.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DOT, "dot", false, "render the graph in Graphviz DOT")

	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	compiled, err := compilePlan(path, cfg, logger)
	if err != nil {
		return err
	}

	p := compiled.Plan
	graph := plan.BuildGraph(p)
	result := ExplainResult{
		Plan:        p.String(),
		PlanHash:    formatPlanHash(p),
		Complexity:  p.Complexity(),
		Reverse:     p.IsReverse(),
		FullScan:    p.HasFullRecordScan(),
		UsedIndexes: p.UsedIndexes(),
		Graph:       graph,
	}
	if result.UsedIndexes == nil {
		result.UsedIndexes = []string{}
	}
	if opts.DOT {
		result.DOT = explain.RenderDOT(graph)
	}

	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		if opts.DOT {
			fmt.Fprint(w, result.DOT)
			return
		}
		fmt.Fprintf(w, "Plan:       %s\n", result.Plan)
		fmt.Fprintf(w, "Plan hash:  %s\n", result.PlanHash)
		fmt.Fprintf(w, "Complexity: %d\n", result.Complexity)
		fmt.Fprintf(w, "Reverse:    %t\n", result.Reverse)
		fmt.Fprintln(w)
		fmt.Fprint(w, explain.RenderText(graph))
	})
}

// compilePlan compiles path with the config's planner section as defaults.
func compilePlan(path string, cfg *config.Config, logger *slog.Logger) (*compiler.Compiled, error) {
	plannerCfg, err := cfg.PlannerConfiguration()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid planner configuration", err)
	}
	compiled, err := compiler.CompileFile(path,
		compiler.WithPlannerDefaults(plannerCfg),
		compiler.WithLogger(logger),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to compile plan", err)
	}
	logger.Debug("plan compiled", "path", path, "plan", compiled.Plan.String())
	return compiled, nil
}

func formatPlanHash(p plan.Plan) string {
	return fmt.Sprintf("%016x", p.PlanHash())
}
