package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/query"
)

// parseParams applies name=value flags over base. Values that parse as
// integers or booleans bind as such, "null" binds null, and a value quoted
// with double quotes always binds as a string.
func parseParams(base *query.EvaluationContext, flags []string) (*query.EvaluationContext, error) {
	ec := base
	for _, f := range flags {
		name, raw, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("param %q: want name=value", f)
		}
		if ec == nil {
			ec = query.EmptyContext()
		}
		ec = ec.WithBinding(name, parseParamValue(raw))
	}
	return ec, nil
}

func parseParamValue(raw string) ir.Value {
	if s, err := strconv.Unquote(raw); err == nil && strings.HasPrefix(raw, `"`) {
		return ir.String(s)
	}
	if raw == "null" {
		return ir.Null{}
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ir.Int(i)
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return ir.Bool(b)
	}
	return ir.String(raw)
}

// parseContinuation decodes a hex continuation flag. Empty means a fresh
// execution.
func parseContinuation(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("continuation is not hex: %w", err)
	}
	return b, nil
}
