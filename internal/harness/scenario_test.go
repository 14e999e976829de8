package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rangeplan/internal/ir"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.cue"), []byte(`plan: scan: {}`), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_ResolvesPlanRelativeToFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/in_list_paging.yaml")
	require.NoError(t, err)

	assert.Equal(t, "in_list_paging", s.Name)
	assert.Equal(t, filepath.Join("testdata", "plans", "in_list.cue"), s.Plan)
	assert.Equal(t, 2, s.PageSize)
	assert.Len(t, s.Records, 6)
	assert.Equal(t, 2, s.Expect.Pages)
	assert.Len(t, s.Expect.Keys, 3)
}

func TestLoadScenario_RecordFields(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/equals_scan.yaml")
	require.NoError(t, err)

	r, err := s.Records[1].Record()
	require.NoError(t, err)
	assert.Equal(t, "(5)", r.PrimaryKey.String())
	assert.Equal(t, ir.String("five"), r.Fields["name"])
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown field",
			body: "name: x\ndescription: d\nplan: plan.cue\nexpect: {keys: []}\npage_sise: 2\n",
			want: "page_sise",
		},
		{
			name: "missing name",
			body: "description: d\nplan: plan.cue\n",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: x\nplan: plan.cue\n",
			want: "description is required",
		},
		{
			name: "missing plan",
			body: "name: x\ndescription: d\n",
			want: "plan is required",
		},
		{
			name: "plan not found",
			body: "name: x\ndescription: d\nplan: nope.cue\n",
			want: "plan file not found",
		},
		{
			name: "negative page size",
			body: "name: x\ndescription: d\nplan: plan.cue\npage_size: -1\n",
			want: "page_size must not be negative",
		},
		{
			name: "unknown error code",
			body: "name: x\ndescription: d\nplan: plan.cue\nexpect: {error: BOOM}\n",
			want: `unknown code "BOOM"`,
		},
		{
			name: "record without key",
			body: "name: x\ndescription: d\nplan: plan.cue\nrecords:\n  - fields: {a: 1}\n",
			want: "records[0]: key is required",
		},
		{
			name: "float key",
			body: "name: x\ndescription: d\nplan: plan.cue\nrecords:\n  - key: [1.5]\n",
			want: "records[0]",
		},
		{
			name: "nested key element",
			body: "name: x\ndescription: d\nplan: plan.cue\nexpect:\n  keys: [[[1]]]\n",
			want: "cannot be a key element",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
