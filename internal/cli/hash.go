package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// HashResult is the output of the hash command.
type HashResult struct {
	Plan     string `json:"plan"`
	PlanHash string `json:"plan_hash"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <plan.cue>",
		Short: "Print a plan's version-stable hash",
		Long: `Compile a CUE plan description and print its plan hash in hex.

The hash depends only on plan structure and literal comparison values, so
it is stable across processes and releases and can key plan caches or
identify plans in logs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			compiled, err := compilePlan(args[0], cfg, rootOpts.logger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			result := HashResult{
				Plan:     compiled.Plan.String(),
				PlanHash: formatPlanHash(compiled.Plan),
			}
			return rootOpts.formatter(cmd).Success(result, func(w io.Writer) {
				fmt.Fprintln(w, result.PlanHash)
			})
		},
	}
}
