// Package planner holds the planner configuration and the scan planner that
// reads it.
package planner

import (
	"fmt"
	"strings"
)

// IndexScanPreference biases the choice between an index scan and a range
// scan when neither is otherwise favored.
type IndexScanPreference int

const (
	// PreferScan chooses the range scan unless an index satisfies an
	// additional condition.
	PreferScan IndexScanPreference = iota
	// PreferIndex chooses an applicable index scan even without an
	// additional filtering benefit. Useful when the store holds several
	// record kinds and a plain scan would visit unrelated entries.
	PreferIndex
)

func (p IndexScanPreference) String() string {
	switch p {
	case PreferScan:
		return "PREFER_SCAN"
	case PreferIndex:
		return "PREFER_INDEX"
	default:
		return fmt.Sprintf("IndexScanPreference(%d)", int(p))
	}
}

// ParseIndexScanPreference accepts PREFER_SCAN or PREFER_INDEX in any case.
func ParseIndexScanPreference(s string) (IndexScanPreference, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PREFER_SCAN":
		return PreferScan, nil
	case "PREFER_INDEX":
		return PreferIndex, nil
	default:
		return PreferScan, fmt.Errorf("unknown index scan preference %q (want PREFER_SCAN or PREFER_INDEX)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p IndexScanPreference) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *IndexScanPreference) UnmarshalText(text []byte) error {
	v, err := ParseIndexScanPreference(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Configuration is an immutable set of planner knobs. The zero value is the
// default: PreferScan, no IN-as-OR rewrite. Build modified copies with
// ToBuilder.
type Configuration struct {
	indexScanPreference     IndexScanPreference
	attemptFailedInJoinAsOr bool
}

// DefaultConfiguration returns the default configuration.
func DefaultConfiguration() Configuration {
	return NewBuilder().Build()
}

// IndexScanPreference reports whether index scans are preferred.
func (c Configuration) IndexScanPreference() IndexScanPreference {
	return c.indexScanPreference
}

// ShouldAttemptFailedInJoinAsOr reports whether an IN predicate that cannot
// be planned as an in-join is rewritten into a union of equality scans.
func (c Configuration) ShouldAttemptFailedInJoinAsOr() bool {
	return c.attemptFailedInJoinAsOr
}

// ToBuilder returns a builder seeded with c. Changes to the builder never
// affect c.
func (c Configuration) ToBuilder() *Builder {
	return &Builder{
		indexScanPreference:     c.indexScanPreference,
		attemptFailedInJoinAsOr: c.attemptFailedInJoinAsOr,
	}
}

func (c Configuration) String() string {
	return fmt.Sprintf("Configuration{indexScanPreference=%s, attemptFailedInJoinAsOr=%t}",
		c.indexScanPreference, c.attemptFailedInJoinAsOr)
}

// Builder accumulates configuration changes. Setters return the builder for
// chaining.
type Builder struct {
	indexScanPreference     IndexScanPreference
	attemptFailedInJoinAsOr bool
}

// NewBuilder starts from the defaults.
func NewBuilder() *Builder {
	return &Builder{indexScanPreference: PreferScan}
}

func (b *Builder) SetIndexScanPreference(p IndexScanPreference) *Builder {
	b.indexScanPreference = p
	return b
}

func (b *Builder) SetAttemptFailedInJoinAsOr(v bool) *Builder {
	b.attemptFailedInJoinAsOr = v
	return b
}

// Build returns a new Configuration. The builder stays usable.
func (b *Builder) Build() Configuration {
	return Configuration{
		indexScanPreference:     b.indexScanPreference,
		attemptFailedInJoinAsOr: b.attemptFailedInJoinAsOr,
	}
}
