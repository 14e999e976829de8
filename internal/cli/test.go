package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rangeplan/internal/harness"
)

// goldenDir is the directory, next to the scenarios, holding their traces.
const goldenDir = "golden"

// Golden file states reported per scenario.
const (
	goldenMatched = "matched"
	goldenUpdated = "updated"
	goldenMissing = "missing"
)

type testOptions struct {
	*RootOptions
	update bool
	filter string
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Pages  int      `json:"pages"`
	Golden string   `json:"golden,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarizes a test run.
type TestResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

func (r *TestResult) add(o ScenarioOutcome) {
	r.Scenarios = append(r.Scenarios, o)
	r.Total++
	if o.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

func (r *TestResult) err() error {
	if r.Failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", r.Failed))
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &testOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run paging scenarios",
		Long: `Run scenario files through the harness: load records into a fresh
in-memory store, execute the plan page by page and check the expected keys.

If <scenarios-dir>/golden/<file>.golden exists, the page trace must match
it byte for byte. --update rewrites the golden files from this run.

Exits 1 when any scenario fails and 2 when the directory cannot be read.

Examples:
  rangeplan test ./scenarios
  rangeplan test ./scenarios --filter "in_*"
  rangeplan test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.update, "update", false, "rewrite golden traces from this run")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "only run scenario files whose base name matches this glob")

	return cmd
}

func runTests(cmd *cobra.Command, opts *testOptions, dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read scenarios directory", err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", dir))
	}

	files, err := scenarioFiles(dir, opts.filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	out := opts.formatter(cmd)
	text := out.Format != "json"
	result := TestResult{Scenarios: []ScenarioOutcome{}}
	for _, file := range files {
		o := checkScenario(file, opts.update)
		result.add(o)
		if text {
			printOutcome(out.Writer, o)
		}
	}

	if !text {
		resp := CLIResponse{Status: "ok", Data: result}
		if err := result.err(); err != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_SCENARIO_FAILED", Message: err.Error()}
		}
		if werr := out.Respond(resp); werr != nil {
			return werr
		}
		return result.err()
	}

	w := out.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	return result.err()
}

func printOutcome(w io.Writer, o ScenarioOutcome) {
	if o.Pass {
		fmt.Fprintf(w, "✓ %s (%d page(s))\n", o.Name, o.Pages)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", o.Name)
	for _, e := range o.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// scenarioFiles lists the .yaml/.yml files under dir in lexical order,
// skipping golden directories. A non-empty filter is matched against the
// base name without extension.
func scenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, "x"); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && d.Name() == goldenDir:
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// goldenPath maps dir/in_list.yaml to dir/golden/in_list.golden.
func goldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), goldenDir, name+".golden")
}

func checkScenario(file string, update bool) ScenarioOutcome {
	o := ScenarioOutcome{Name: filepath.Base(file), File: file}
	failf := func(format string, args ...any) ScenarioOutcome {
		o.Pass = false
		o.Errors = append(o.Errors, fmt.Sprintf(format, args...))
		return o
	}

	s, err := harness.LoadScenario(file)
	if err != nil {
		return failf("failed to load scenario: %v", err)
	}
	o.Name = s.Name

	res, err := harness.Run(s)
	if err != nil {
		return failf("execution failed: %v", err)
	}
	o.Pass = res.Pass
	o.Pages = len(res.Trace)
	o.Errors = res.Errors

	trace, err := res.GoldenBytes(s.Name)
	if err != nil {
		return failf("failed to marshal trace: %v", err)
	}
	path := goldenPath(file)

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return failf("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(path, trace, 0o644); err != nil {
			return failf("failed to write golden file: %v", err)
		}
		o.Golden = goldenUpdated
		return o
	}

	want, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		o.Golden = goldenMissing
	case err != nil:
		return failf("failed to read golden file: %v", err)
	case !bytes.Equal(want, trace):
		return failf("trace does not match golden file (run with --update to regenerate)")
	default:
		o.Golden = goldenMatched
	}
	return o
}
