// Package record maps raw store entries to typed records.
//
// A record's primary key is a tuple packed into the entry key; its fields are
// a JSON object in the entry value.
package record

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/rangeplan/internal/ir"
	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/tuple"
)

// Record is one stored row.
type Record struct {
	PrimaryKey tuple.Tuple `json:"key"`
	Fields     ir.Object   `json:"fields"`
}

// Projector turns a raw entry into a Record.
type Projector interface {
	Project(e kv.Entry) (Record, error)
}

// ProjectorFunc adapts a function to Projector.
type ProjectorFunc func(e kv.Entry) (Record, error)

// Project calls f(e).
func (f ProjectorFunc) Project(e kv.Entry) (Record, error) { return f(e) }

// JSONProjector decodes packed tuple keys and JSON object values.
type JSONProjector struct{}

// Project implements Projector.
func (JSONProjector) Project(e kv.Entry) (Record, error) {
	pk, err := tuple.Unpack(e.Key)
	if err != nil {
		return Record{}, fmt.Errorf("decode primary key: %w", err)
	}
	fields := ir.Object{}
	if len(e.Value) > 0 {
		if err := json.Unmarshal(e.Value, &fields); err != nil {
			return Record{}, fmt.Errorf("decode fields of %s: %w", pk, err)
		}
	}
	return Record{PrimaryKey: pk, Fields: fields}, nil
}

// Encode produces the entry JSONProjector reads back.
func Encode(r Record) (kv.Entry, error) {
	if len(r.PrimaryKey) == 0 {
		return kv.Entry{}, fmt.Errorf("record has no primary key")
	}
	key, err := r.PrimaryKey.Pack()
	if err != nil {
		return kv.Entry{}, fmt.Errorf("encode primary key: %w", err)
	}
	fields := r.Fields
	if fields == nil {
		fields = ir.Object{}
	}
	value, err := fields.MarshalJSON()
	if err != nil {
		return kv.Entry{}, fmt.Errorf("encode fields of %s: %w", r.PrimaryKey, err)
	}
	return kv.Entry{Key: key, Value: value}, nil
}
