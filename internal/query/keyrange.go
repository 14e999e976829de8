package query

import (
	"bytes"
	"strings"

	"github.com/roach88/rangeplan/internal/tuple"
)

// KeyRange is a span of encoded keys. A nil bound is unbounded on that side.
type KeyRange struct {
	Low           []byte
	High          []byte
	LowInclusive  bool
	HighInclusive bool
}

// AllKeys is the fully unbounded range.
var AllKeys = KeyRange{}

// PrefixRange returns [prefix, strinc(prefix)), or AllKeys for an empty prefix.
func PrefixRange(prefix []byte) (KeyRange, error) {
	if len(prefix) == 0 {
		return AllKeys, nil
	}
	high, err := tuple.Strinc(prefix)
	if err != nil {
		return KeyRange{}, err
	}
	return KeyRange{Low: bytes.Clone(prefix), LowInclusive: true, High: high}, nil
}

// IsUnbounded reports whether neither side is bounded.
func (r KeyRange) IsUnbounded() bool {
	return r.Low == nil && r.High == nil
}

// Equal compares bounds bytewise. Inclusive flags of unbounded sides are ignored.
func (r KeyRange) Equal(other KeyRange) bool {
	return sideEqual(r.Low, r.LowInclusive, other.Low, other.LowInclusive) &&
		sideEqual(r.High, r.HighInclusive, other.High, other.HighInclusive)
}

func sideEqual(a []byte, aIncl bool, b []byte, bIncl bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return bytes.Equal(a, b) && aIncl == bIncl
}

// Contains reports whether key lies within the range.
func (r KeyRange) Contains(key []byte) bool {
	return r.AboveLow(key) && r.BelowHigh(key)
}

// AboveLow reports whether key satisfies the low bound.
func (r KeyRange) AboveLow(key []byte) bool {
	if r.Low == nil {
		return true
	}
	c := bytes.Compare(key, r.Low)
	return c > 0 || (c == 0 && r.LowInclusive)
}

// BelowHigh reports whether key satisfies the high bound.
func (r KeyRange) BelowHigh(key []byte) bool {
	if r.High == nil {
		return true
	}
	c := bytes.Compare(key, r.High)
	return c < 0 || (c == 0 && r.HighInclusive)
}

// IsEmpty reports whether no key can fall within the range.
func (r KeyRange) IsEmpty() bool {
	if r.Low == nil || r.High == nil {
		return false
	}
	c := bytes.Compare(r.Low, r.High)
	return c > 0 || (c == 0 && !(r.LowInclusive && r.HighInclusive))
}

// String renders the range as [low, high) using decoded tuples where the
// bounds are complete keys. Unbounded sides render as <min> and <max>.
func (r KeyRange) String() string {
	var sb strings.Builder
	if r.Low == nil || r.LowInclusive {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if r.Low == nil {
		sb.WriteString("<min>")
	} else {
		sb.WriteString(tuple.Printable(r.Low))
	}
	sb.WriteString(", ")
	if r.High == nil {
		sb.WriteString("<max>")
	} else {
		sb.WriteString(tuple.Printable(r.High))
	}
	if r.High == nil || r.HighInclusive {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}
