package parquet

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/parquet-go/parquet-go"

	"taxiprep/internal/schema"
)

// writeBatch is the number of rows handed to the writer per call.
const writeBatch = 4096

// Schema returns the output schema for cols. Every column is optional;
// timestamps are stored as microsecond TIMESTAMP, counts and ids as INT64,
// measures as DOUBLE and zone attributes and buckets as UTF-8 strings.
func Schema(cols []string) *parquet.Schema {
	g := parquet.Group{}
	for _, c := range cols {
		g[c] = parquet.Optional(nodeFor(schema.KindOf(c)))
	}
	return parquet.NewSchema("trip", g)
}

func nodeFor(k schema.Kind) parquet.Node {
	switch k {
	case schema.KindTimestamp:
		return parquet.Timestamp(parquet.Microsecond)
	case schema.KindInt:
		return parquet.Int(64)
	case schema.KindFloat:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

// WriteTrips writes recs as one snappy-compressed parquet file with the
// columns cols.
func WriteTrips(w io.Writer, cols []string, recs []schema.Record) error {
	sch := Schema(cols)

	// Group leaves are ordered by name; leaf[i] is the column index of cols[i].
	sorted := slices.Sorted(slices.Values(cols))
	leaf := make([]int, len(cols))
	for i, c := range cols {
		leaf[i] = slices.Index(sorted, c)
	}

	pw := parquet.NewWriter(w, sch, parquet.Compression(&parquet.Snappy))
	rows := make([]parquet.Row, 0, writeBatch)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if _, err := pw.WriteRows(rows); err != nil {
			return err
		}
		rows = rows[:0]
		return nil
	}

	for i := range recs {
		row := make(parquet.Row, len(cols))
		for c, col := range cols {
			row[leaf[c]] = leafValue(recs[i].Value(col), leaf[c])
		}
		rows = append(rows, row)
		if len(rows) == writeBatch {
			if err := flush(); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// leafValue encodes v for an optional leaf: definition level 1 for present
// values, 0 for nulls.
func leafValue(v any, column int) parquet.Value {
	var pv parquet.Value
	switch x := v.(type) {
	case nil:
		return parquet.NullValue().Level(0, 0, column)
	case time.Time:
		pv = parquet.Int64Value(x.UnixMicro())
	case int64:
		pv = parquet.Int64Value(x)
	case float64:
		pv = parquet.DoubleValue(x)
	case string:
		pv = parquet.ByteArrayValue([]byte(x))
	default:
		pv = parquet.ByteArrayValue([]byte(fmt.Sprint(x)))
	}
	return pv.Level(0, 1, column)
}
