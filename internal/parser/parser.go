// Package parser maps trip file formats to their readers and writers. The
// loader picks a reader by file extension; the writer picks a format by name.
package parser

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"taxiprep/internal/datasource"
	"taxiprep/internal/datasource/file"
	csvfmt "taxiprep/internal/parser/csv"
	parquetfmt "taxiprep/internal/parser/parquet"
	"taxiprep/internal/schema"
)

// ReadFunc reads every trip of the file at path. It returns the records and
// the number of rows dropped as unreadable.
type ReadFunc func(ctx context.Context, path string) ([]schema.Record, int, error)

// WriteFunc writes recs with the columns cols.
type WriteFunc func(w io.Writer, cols []string, recs []schema.Record) error

// Format is one supported file format.
type Format struct {
	Name  string
	Ext   string
	Read  ReadFunc
	Write WriteFunc
}

// openSource is a test seam.
var openSource = func(path string) datasource.Source { return file.NewLocal(path) }

var formats = []Format{
	{Name: "parquet", Ext: ".parquet", Read: readParquet, Write: parquetfmt.WriteTrips},
	{Name: "csv", Ext: ".csv", Read: readCSV, Write: csvfmt.WriteTrips},
}

// ForPath returns the format of path by its extension, case-insensitively.
func ForPath(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats {
		if f.Ext == ext {
			return f, true
		}
	}
	return Format{}, false
}

// Lookup returns the format called name.
func Lookup(name string) (Format, error) {
	for _, f := range formats {
		if f.Name == name {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("parser: unknown format %q", name)
}

// Extensions lists the extensions of every supported format.
func Extensions() []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = f.Ext
	}
	return out
}

func readParquet(ctx context.Context, path string) ([]schema.Record, int, error) {
	recs, err := parquetfmt.ReadFile(ctx, path)
	return recs, 0, err
}

func readCSV(ctx context.Context, path string) ([]schema.Record, int, error) {
	rc, err := openSource(path).Open(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	res, err := csvfmt.ReadTrips(ctx, rc, path, csvfmt.Options{}, nil)
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Skipped, nil
}
