// Package zones loads the taxi zone table and serves it as a read-only
// lookup from zone id to zone attributes.
//
// The table is the TLC lookup CSV:
//
//	"LocationID","Borough","Zone","service_zone"
//	1,"EWR","Newark Airport","EWR"
//
// Empty cells load as null attributes.
package zones

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"taxiprep/internal/datasource/file"
	"taxiprep/internal/etlerr"
	tripcsv "taxiprep/internal/parser/csv"
	"taxiprep/internal/schema"
)

// Column names of the zone table after header normalization.
const (
	colID          = "locationid"
	colBorough     = "borough"
	colZone        = "zone"
	colServiceZone = "service_zone"
)

// Lookup maps zone ids to zone attributes. It is safe for concurrent reads.
type Lookup struct {
	zones map[int64]schema.Zone
}

// NewLookup builds a Lookup from an in-memory table.
func NewLookup(m map[int64]schema.Zone) *Lookup {
	zs := make(map[int64]schema.Zone, len(m))
	for id, z := range m {
		zs[id] = z
	}
	return &Lookup{zones: zs}
}

// Zone returns the attributes of id.
func (l *Lookup) Zone(id int64) (schema.Zone, bool) {
	z, ok := l.zones[id]
	return z, ok
}

// Len returns the number of zones.
func (l *Lookup) Len() int { return len(l.zones) }

// Load reads the zone table at path.
func Load(ctx context.Context, path string) (*Lookup, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &etlerr.NotFoundError{Path: path, Err: err}
		}
		return nil, &etlerr.LoadError{Path: path, Err: err}
	}
	defer rc.Close()
	return Read(rc, path)
}

// Read parses a zone table from r. source names the table in errors. A
// repeated id keeps its first row.
func Read(r io.Reader, source string) (*Lookup, error) {
	cr := csv.NewReader(tripcsv.SkipBOM(r))
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err != nil {
		return nil, &etlerr.LoadError{Path: source, Err: fmt.Errorf("read header: %w", err)}
	}
	ix := map[string]int{colID: -1, colBorough: -1, colZone: -1, colServiceZone: -1}
	for i, h := range tripcsv.StripHeaderBOM(hdr) {
		if name := tripcsv.NormalizeHeader(h); ix[name] == -1 {
			ix[name] = i
		}
	}
	for _, c := range []string{colID, colBorough, colZone, colServiceZone} {
		if ix[c] < 0 {
			return nil, &etlerr.SchemaError{Stage: "zones", Column: c, Source: source}
		}
	}

	l := &Lookup{zones: make(map[int64]schema.Zone, 265)}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &etlerr.LoadError{Path: source, Err: fmt.Errorf("line %d: %w", line, err)}
		}
		cell := func(c string) string {
			if ix[c] >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[ix[c]])
		}
		id, err := strconv.ParseInt(cell(colID), 10, 64)
		if err != nil {
			return nil, &etlerr.LoadError{Path: source, Err: fmt.Errorf("line %d: bad LocationID %q", line, cell(colID))}
		}
		if _, dup := l.zones[id]; dup {
			continue
		}
		l.zones[id] = schema.Zone{
			Name:        optString(cell(colZone)),
			Borough:     optString(cell(colBorough)),
			ServiceZone: optString(cell(colServiceZone)),
		}
	}
	return l, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
