package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"taxiprep/internal/schema"
)

// TimeLayout is the timestamp format written to CSV output. ReadTrips reads
// it back.
const TimeLayout = "2006-01-02 15:04:05"

// WriteTrips writes a header of cols followed by one row per record. Null
// values are written as empty cells.
func WriteTrips(w io.Writer, cols []string, recs []schema.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(cols))
	for i := range recs {
		for c, col := range cols {
			row[c] = formatValue(recs[i].Value(col))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format(TimeLayout)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
