package models

import (
	"fmt"
	"strings"
)

// Record maps canonical field names to typed values: nil, string, int64 or float64.
type Record map[string]any

// Key builds the natural-key identity of the record. ok is false when any key
// field is missing or nil.
func (r Record) Key(fields []string) (key string, ok bool) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, exists := r[f]
		if !exists || v == nil {
			return "", false
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x1f"), true
}

// Batch is an ordered set of records that share a column list.
type Batch struct {
	// Columns lists the field names in insertion order.
	Columns []string `json:"columns"`
	// Records holds the rows to persist.
	Records []Record `json:"records"`
}

// Len returns the number of records.
func (b *Batch) Len() int {
	return len(b.Records)
}

// AddColumn appends name to Columns unless already present.
func (b *Batch) AddColumn(name string) {
	for _, c := range b.Columns {
		if c == name {
			return
		}
	}
	b.Columns = append(b.Columns, name)
}

// Values returns the record values ordered like Columns.
func (b *Batch) Values(r Record) []any {
	out := make([]any, len(b.Columns))
	for i, c := range b.Columns {
		out[i] = r[c]
	}
	return out
}
