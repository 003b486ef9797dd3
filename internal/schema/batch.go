package schema

import (
	"sort"

	"taxiprep/internal/etlerr"
)

// Batch is the in-memory table a pipeline run operates on: the records plus
// the set of columns currently present. Stages remove rows and add columns;
// they never add rows.
type Batch struct {
	Records []Record
	cols    map[string]struct{}
}

// NewBatch returns a batch over recs whose present columns are cols. With no
// cols, every raw column is considered present.
func NewBatch(recs []Record, cols ...string) *Batch {
	if len(cols) == 0 {
		cols = RawColumns
	}
	b := &Batch{Records: recs, cols: make(map[string]struct{}, len(order))}
	b.AddColumns(cols...)
	return b
}

// Len returns the number of records.
func (b *Batch) Len() int { return len(b.Records) }

// Has reports whether col is present.
func (b *Batch) Has(col string) bool {
	_, ok := b.cols[col]
	return ok
}

// AddColumns marks cols as present.
func (b *Batch) AddColumns(cols ...string) {
	if b.cols == nil {
		b.cols = make(map[string]struct{}, len(order))
	}
	for _, c := range cols {
		b.cols[c] = struct{}{}
	}
}

// DropColumns marks cols as absent. Field values stay on the records but are
// no longer part of the output schema.
func (b *Batch) DropColumns(cols ...string) {
	for _, c := range cols {
		delete(b.cols, c)
	}
}

// Columns returns the present columns in canonical output order. Unknown
// columns sort last by name.
func (b *Batch) Columns() []string {
	out := make([]string, 0, len(b.cols))
	for c := range b.cols {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, ki := order[out[i]]
		oj, kj := order[out[j]]
		switch {
		case ki && kj:
			return oi < oj
		case ki != kj:
			return ki
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// Require returns a SchemaError naming stage and the first column of cols
// that is absent.
func (b *Batch) Require(stage string, cols ...string) error {
	for _, c := range cols {
		if !b.Has(c) {
			return &etlerr.SchemaError{Stage: stage, Column: c}
		}
	}
	return nil
}

// Filter keeps the records for which keep returns true, preserving order, and
// returns how many were removed. The backing array is reused.
func (b *Batch) Filter(keep func(*Record) bool) int {
	out := b.Records[:0]
	for i := range b.Records {
		if keep(&b.Records[i]) {
			out = append(out, b.Records[i])
		}
	}
	removed := len(b.Records) - len(out)
	clear(b.Records[len(out):])
	b.Records = out
	return removed
}
