package sqlitekv

import (
	"strings"

	"github.com/roach88/rangeplan/internal/query"
)

// CompileRange converts a key range to a parameterized SELECT over entries.
// Returns (sql, params).
//
// Every statement carries an ORDER BY on the key, collated BINARY, so
// iteration order never depends on the query planner or a column default.
// Bound bytes are always parameters.
func CompileRange(r query.KeyRange, reverse bool) (string, []any) {
	var conds []string
	var params []any

	if r.Low != nil {
		if r.LowInclusive {
			conds = append(conds, "key >= ?")
		} else {
			conds = append(conds, "key > ?")
		}
		params = append(params, r.Low)
	}
	if r.High != nil {
		if r.HighInclusive {
			conds = append(conds, "key <= ?")
		} else {
			conds = append(conds, "key < ?")
		}
		params = append(params, r.High)
	}

	var sb strings.Builder
	sb.WriteString("SELECT key, value FROM entries")
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if reverse {
		sb.WriteString(" ORDER BY key COLLATE BINARY DESC")
	} else {
		sb.WriteString(" ORDER BY key COLLATE BINARY ASC")
	}
	return sb.String(), params
}
