package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fiveRecords = `
- key: [1]
  fields: {name: one}
- key: [2]
  fields: {name: two}
- key: [3]
- key: [4]
- key: [5]
  fields: {name: five}
`

type scanResponse struct {
	Status string `json:"status"`
	Data   struct {
		ExecutionID string `json:"execution_id"`
		PlanHash    string `json:"plan_hash"`
		Records     []struct {
			Key    []any          `json:"key"`
			Fields map[string]any `json:"fields"`
		} `json:"records"`
		Reason       string `json:"reason"`
		Continuation string `json:"continuation"`
	} `json:"data"`
	Error *CLIError `json:"error"`
}

func (r scanResponse) keys() []float64 {
	var keys []float64
	for _, rec := range r.Data.Records {
		keys = append(keys, rec.Key[0].(float64))
	}
	return keys
}

func loadedStore(t *testing.T) (cfg, dir string) {
	t.Helper()
	cfg = sqliteConfig(t, "")
	dir = t.TempDir()
	records := writeFile(t, dir, "records.yaml", fiveRecords)

	out, _, err := execute(t, "load", records, "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Saved 5 record(s)\n", out)
	return cfg, dir
}

func scanJSON(t *testing.T, args ...string) scanResponse {
	t.Helper()
	out, _, err := execute(t, append([]string{"scan", "--format", "json"}, args...)...)
	require.NoError(t, err)
	var resp scanResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestScan_Pages(t *testing.T) {
	cfg, dir := loadedStore(t)
	plan := writeFile(t, dir, "plan.cue", `plan: scan: {}`)

	first := scanJSON(t, plan, "--config", cfg, "--limit", "2")
	assert.Equal(t, "ok", first.Status)
	assert.Equal(t, []float64{1, 2}, first.keys())
	assert.Equal(t, "RETURN_LIMIT_REACHED", first.Data.Reason)
	assert.Equal(t, "01158000000000000002", first.Data.Continuation)
	assert.Equal(t, "two", first.Data.Records[1].Fields["name"])

	second := scanJSON(t, plan, "--config", cfg, "--limit", "2", "--continuation", first.Data.Continuation)
	assert.Equal(t, []float64{3, 4}, second.keys())

	third := scanJSON(t, plan, "--config", cfg, "--limit", "2", "--continuation", second.Data.Continuation)
	assert.Equal(t, []float64{5}, third.keys())
	assert.Equal(t, "SOURCE_EXHAUSTED", third.Data.Reason)
	assert.Empty(t, third.Data.Continuation)
}

func TestScan_Params(t *testing.T) {
	cfg, dir := loadedStore(t)
	plan := writeFile(t, dir, "plan.cue", `
params: lo: 2
plan: scan: {
	reverse: true
	inequality: [{op: "GREATER_THAN_OR_EQUALS", param: "lo"}]
}
`)

	resp := scanJSON(t, plan, "--config", cfg)
	assert.Equal(t, []float64{5, 4, 3, 2}, resp.keys())

	resp = scanJSON(t, plan, "--config", cfg, "--param", "lo=4")
	assert.Equal(t, []float64{5, 4}, resp.keys())
}

func TestScan_Text(t *testing.T) {
	cfg, dir := loadedStore(t)
	plan := writeFile(t, dir, "plan.cue", `plan: scan: equality: [{op: "EQUALS", value: 5}]`)

	out, _, err := execute(t, "scan", plan, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "(5) ")
	assert.Contains(t, out, "1 record(s), SOURCE_EXHAUSTED\n")
	assert.NotContains(t, out, "continuation:")
}

func TestScan_UnboundParameter(t *testing.T) {
	cfg, dir := loadedStore(t)
	plan := writeFile(t, dir, "plan.cue", `plan: scan: equality: [{op: "EQUALS", param: "id"}]`)

	out, _, err := execute(t, "scan", plan, "--config", cfg, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp scanResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONTEXT_REQUIRED", resp.Error.Code)
}

func TestScan_InvalidContinuation(t *testing.T) {
	cfg, dir := loadedStore(t)
	plan := writeFile(t, dir, "plan.cue", `plan: scan: {}`)

	out, _, err := execute(t, "scan", plan, "--config", cfg, "--continuation", "42")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_CONTINUATION]")

	_, _, err = execute(t, "scan", plan, "--config", cfg, "--continuation", "not-hex")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScan_Metrics(t *testing.T) {
	cfg, dir := loadedStore(t)
	plan := writeFile(t, dir, "plan.cue", `plan: scan: {}`)

	_, stderr, err := execute(t, "scan", plan, "--config", cfg, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, stderr, "rangeplan_rows_returned_total 5")
	assert.Contains(t, stderr, `rangeplan_plan_structure_total{kind="plan_scan"} 1`)
}

func TestLoad_Delete(t *testing.T) {
	cfg, dir := loadedStore(t)
	del := writeFile(t, dir, "delete.yaml", "- key: [2]\n- key: [4]\n")

	out, _, err := execute(t, "load", del, "--delete", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Deleted 2 record(s)\n", out)

	plan := writeFile(t, dir, "plan.cue", `plan: scan: {}`)
	resp := scanJSON(t, plan, "--config", cfg)
	assert.Equal(t, []float64{1, 3, 5}, resp.keys())
}

func TestLoad_Errors(t *testing.T) {
	cfg := sqliteConfig(t, "")
	dir := t.TempDir()

	_, _, err := execute(t, "load", filepath.Join(dir, "missing.yaml"), "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	bad := writeFile(t, dir, "bad.yaml", "- fields: {a: 1}\n")
	_, _, err = execute(t, "load", bad, "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key is required")

	typo := writeFile(t, dir, "typo.yaml", "- key: [1]\n  feilds: {}\n")
	_, _, err = execute(t, "load", typo, "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feilds")
}
