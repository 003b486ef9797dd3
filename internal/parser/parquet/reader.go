// Package parquet reads TLC trip files and writes processed partitions in
// Apache Parquet format using parquet-go.
//
// Source files come in two flavors that differ only in the timestamp column
// prefix: yellow cabs use tpep_*, green cabs lpep_*. The flavor is detected
// from the file schema before any row is decoded, so a file lacking one of
// the trip columns fails fast with a SchemaError.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"taxiprep/internal/datasource/file"
	"taxiprep/internal/etlerr"
	"taxiprep/internal/schema"
)

// readBatch is the number of rows decoded per reader call.
const readBatch = 4096

// yellowRow is the subset of a yellow trip file the pipeline reads. Every
// field is a pointer so nulls decode to nil.
type yellowRow struct {
	PickupTime     *time.Time `parquet:"tpep_pickup_datetime,timestamp(microsecond)"`
	DropoffTime    *time.Time `parquet:"tpep_dropoff_datetime,timestamp(microsecond)"`
	PassengerCount *float64   `parquet:"passenger_count"`
	TripDistance   *float64   `parquet:"trip_distance"`
	PULocationID   *int64     `parquet:"PULocationID"`
	DOLocationID   *int64     `parquet:"DOLocationID"`
	FareAmount     *float64   `parquet:"fare_amount"`
	TotalAmount    *float64   `parquet:"total_amount"`
}

// greenRow is yellowRow with the green cab timestamp names.
type greenRow struct {
	PickupTime     *time.Time `parquet:"lpep_pickup_datetime,timestamp(microsecond)"`
	DropoffTime    *time.Time `parquet:"lpep_dropoff_datetime,timestamp(microsecond)"`
	PassengerCount *float64   `parquet:"passenger_count"`
	TripDistance   *float64   `parquet:"trip_distance"`
	PULocationID   *int64     `parquet:"PULocationID"`
	DOLocationID   *int64     `parquet:"DOLocationID"`
	FareAmount     *float64   `parquet:"fare_amount"`
	TotalAmount    *float64   `parquet:"total_amount"`
}

// record copies the row into a Record. The reader decodes every batch into
// the same buffer, so no pointer of r may escape.
func (r *yellowRow) record() schema.Record {
	return schema.Record{
		PickupTime:     optTime(r.PickupTime),
		DropoffTime:    optTime(r.DropoffTime),
		PickupZoneID:   optInt(r.PULocationID),
		DropoffZoneID:  optInt(r.DOLocationID),
		PassengerCount: optCount(r.PassengerCount),
		TripDistance:   optFloat(r.TripDistance),
		FareAmount:     optFloat(r.FareAmount),
		TotalAmount:    optFloat(r.TotalAmount),
	}
}

// The two row types differ only in tags, so they convert freely.
func (r *greenRow) record() schema.Record { return (*yellowRow)(r).record() }

func optTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return schema.Time(t.UTC())
}

func optInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	return schema.Int(*p)
}

func optFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return schema.Float(*p)
}

// optCount converts the float passenger counts TLC files carry; fractional
// values are treated as unreadable.
func optCount(f *float64) *int64 {
	if f == nil || *f != float64(int64(*f)) {
		return nil
	}
	return schema.Int(int64(*f))
}

// flavor column sets, in schema.RawColumns order.
var (
	yellowColumns = []string{"tpep_pickup_datetime", "tpep_dropoff_datetime", "PULocationID", "DOLocationID", "passenger_count", "trip_distance", "fare_amount", "total_amount"}
	greenColumns  = []string{"lpep_pickup_datetime", "lpep_dropoff_datetime", "PULocationID", "DOLocationID", "passenger_count", "trip_distance", "fare_amount", "total_amount"}
)

// ReadFile reads every trip of the parquet file at path. Records carry path
// and their 1-based row number as provenance.
func ReadFile(ctx context.Context, path string) ([]schema.Record, error) {
	f, err := file.NewLocal(path).OpenFile(ctx)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	cols := yellowColumns
	if _, ok := pf.Schema().Lookup("lpep_pickup_datetime"); ok {
		cols = greenColumns
	}
	for i, c := range cols {
		if _, ok := pf.Schema().Lookup(c); !ok {
			return nil, &etlerr.SchemaError{Stage: "load", Column: schema.RawColumns[i], Source: path}
		}
	}

	var recs []schema.Record
	if cols[0] == greenColumns[0] {
		recs, err = readRows(ctx, pf, (*greenRow).record)
	} else {
		recs, err = readRows(ctx, pf, (*yellowRow).record)
	}
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	for i := range recs {
		recs[i].Source = path
		recs[i].Line = i + 1
	}
	return recs, nil
}

func readRows[T any](ctx context.Context, pf *parquet.File, conv func(*T) schema.Record) ([]schema.Record, error) {
	r := parquet.NewGenericReader[T](pf)
	defer r.Close()

	out := make([]schema.Record, 0, r.NumRows())
	buf := make([]T, readBatch)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clear(buf)
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			out = append(out, conv(&buf[i]))
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
