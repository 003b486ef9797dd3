// Package csv reads and writes trip records as CSV.
//
// The reader maps source headers onto canonical trip columns: headers are
// cleaned with NormalizeHeader, then resolved through the optional HeaderMap
// and the yellow/green aliases known to schema.Canonical. Rows with a bad
// shape are soft-dropped and reported through onErr; a missing trip column
// fails the whole file with a SchemaError.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"taxiprep/internal/etlerr"
	"taxiprep/internal/schema"
)

// Options configures the reader. The zero value reads comma separated input
// with trimmed cells.
type Options struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune

	// KeepSpace disables trimming of cell values.
	KeepSpace bool

	// HeaderMap maps normalized source headers to canonical column names for
	// extracts that use their own naming.
	HeaderMap map[string]string
}

// Result is the outcome of reading one file.
type Result struct {
	Records []schema.Record
	// Skipped counts rows dropped because they could not be read.
	Skipped int
}

// timeLayouts are tried in order for timestamp cells. TLC extracts use the
// first; the others appear in re-exported files.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
}

// ReadTrips reads a CSV trip file with a header row from r. source names the
// file in provenance and errors. onErr, when non-nil, receives recoverable
// row errors with the 1-based physical line number.
func ReadTrips(ctx context.Context, r io.Reader, source string, opt Options, onErr func(line int, err error)) (Result, error) {
	cr := csv.NewReader(SkipBOM(r))
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.ReuseRecord = true
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}

	// colIx[c] is the source index of schema.RawColumns[c].
	colIx := make([]int, len(schema.RawColumns))
	for i := range colIx {
		colIx[i] = -1
	}
	for si, h := range StripHeaderBOM(hdr) {
		name := NormalizeHeader(h)
		if mapped, ok := opt.HeaderMap[name]; ok {
			name = mapped
		}
		col, ok := schema.Canonical(name)
		if !ok {
			continue
		}
		for c, raw := range schema.RawColumns {
			if raw == col && colIx[c] < 0 {
				colIx[c] = si
			}
		}
	}
	for c, si := range colIx {
		if si < 0 {
			return Result{}, &etlerr.SchemaError{Stage: "load", Column: schema.RawColumns[c], Source: source}
		}
	}

	var res Result
	for line := 2; ; line++ {
		if line%8192 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		row, err := cr.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			res.Skipped++
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}
		if len(row) < len(hdr) {
			res.Skipped++
			if onErr != nil {
				onErr(line, fmt.Errorf("incorrect number of fields (expected %d, got %d)", len(hdr), len(row)))
			}
			continue
		}

		cell := func(c int) string {
			v := row[colIx[c]]
			if !opt.KeepSpace {
				v = strings.TrimSpace(v)
			}
			return v
		}
		res.Records = append(res.Records, schema.Record{
			PickupTime:     parseTime(cell(0)),
			DropoffTime:    parseTime(cell(1)),
			PickupZoneID:   parseInt(cell(2)),
			DropoffZoneID:  parseInt(cell(3)),
			PassengerCount: parseInt(cell(4)),
			TripDistance:   parseFloat(cell(5)),
			FareAmount:     parseFloat(cell(6)),
			TotalAmount:    parseFloat(cell(7)),
			Source:         source,
			Line:           line - 1,
		})
	}
}

// parseTime returns nil for empty or unparseable cells. Timestamps carry no
// zone in TLC files and are kept as wall-clock values in UTC.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseInt accepts integral floats ("1.0") because pandas-exported files
// write nullable integer columns as floats.
func parseInt(s string) *int64 {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return nil
	}
	n := int64(f)
	return &n
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
