package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rangeplan/internal/engine"
	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/record"
	"github.com/roach88/rangeplan/internal/tuple"
)

// Scenario defines one paged plan execution and its expected output.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan is the path to a CUE plan description. LoadScenario resolves it
	// relative to the scenario file.
	Plan string `yaml:"plan"`

	// Records are loaded before the plan runs.
	Records []RecordSpec `yaml:"records"`

	// Params override the plan description's params.
	Params map[string]any `yaml:"params,omitempty"`

	// PageSize is the row limit per execution. Zero reads everything in
	// one page.
	PageSize int `yaml:"page_size,omitempty"`

	// ByteLimit is the scanned-bytes limit per execution.
	ByteLimit int64 `yaml:"byte_limit,omitempty"`

	// ExecutionID fixes the execution ID for golden traces.
	// Defaults to "test-execution".
	ExecutionID string `yaml:"execution_id,omitempty"`

	Expect Expectation `yaml:"expect"`
}

// RecordSpec is one record to load.
type RecordSpec struct {
	Key    []any          `yaml:"key"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Expectation is checked after the run.
type Expectation struct {
	// Keys are the primary keys of all returned records, in order.
	Keys [][]any `yaml:"keys"`

	// Pages, if set, is the exact number of executions.
	Pages int `yaml:"pages,omitempty"`

	// Error, if set, is the execution error code the first page must fail
	// with, e.g. CONTEXT_REQUIRED. Keys are then ignored.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Plan != "" && !filepath.IsAbs(scenario.Plan) {
		scenario.Plan = filepath.Join(filepath.Dir(path), scenario.Plan)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}
	if _, err := os.Stat(s.Plan); os.IsNotExist(err) {
		return fmt.Errorf("plan file not found: %s", s.Plan)
	}
	if s.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative")
	}
	if s.ByteLimit < 0 {
		return fmt.Errorf("byte_limit must not be negative")
	}
	switch engine.ExecutionErrorCode(s.Expect.Error) {
	case "", engine.ErrCodeContextRequired, engine.ErrCodeInvalidContinuation, engine.ErrCodeStoreFailure:
	default:
		return fmt.Errorf("expect.error: unknown code %q", s.Expect.Error)
	}

	for i, r := range s.Records {
		if len(r.Key) == 0 {
			return fmt.Errorf("records[%d]: key is required", i)
		}
		if _, err := r.Record(); err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
	}
	for i, k := range s.Expect.Keys {
		if _, err := toTuple(k); err != nil {
			return fmt.Errorf("expect.keys[%d]: %w", i, err)
		}
	}
	return nil
}

// Record converts the spec to a storable record.
func (r RecordSpec) Record() (record.Record, error) {
	pk, err := toTuple(r.Key)
	if err != nil {
		return record.Record{}, fmt.Errorf("key: %w", err)
	}
	fields := ir.Object{}
	for name, v := range r.Fields {
		converted, err := ir.FromGo(v)
		if err != nil {
			return record.Record{}, fmt.Errorf("fields.%s: %w", name, err)
		}
		fields[name] = converted
	}
	return record.Record{PrimaryKey: pk, Fields: fields}, nil
}

func toTuple(elems []any) (tuple.Tuple, error) {
	t := make(tuple.Tuple, len(elems))
	for i, e := range elems {
		v, err := ir.FromGo(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		switch v.(type) {
		case ir.Array, ir.Object:
			return nil, fmt.Errorf("[%d]: %s cannot be a key element", i, ir.TypeName(v))
		}
		t[i] = v
	}
	return t, nil
}
