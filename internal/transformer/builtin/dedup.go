// Package builtin contains the cleaning and enrichment stages of the trip
// pipeline, in the order they normally run:
//
//	DeDup        remove exact duplicate rows
//	Require      remove rows with nulls in required fields
//	Duration     derive trip_duration_minutes
//	Integrity    remove structurally impossible trips
//	Outlier      remove implausible trips, then batch quantile caps
//	ZoneEnricher join zone attributes for pickup and dropoff
//	TimeFeatures derive calendar features
//
// Each stage works in place on a schema.Batch and reports its drops through
// the transformer.Report it is given.
package builtin

import (
	"context"

	"github.com/zeebo/xxh3"

	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

// ReasonDuplicate is the drop reason of DeDup.
const ReasonDuplicate = "duplicate"

// cancelEvery is how many rows a stage processes between context checks.
const cancelEvery = 8192

// DeDup removes rows whose raw fields equal an earlier row's, keeping the
// first occurrence. Rows are bucketed by an xxh3 hash of their raw key and
// compared field by field within a bucket, so hash collisions never merge
// distinct trips.
type DeDup struct{}

func (DeDup) Name() string { return "dedupe" }

func (DeDup) Apply(ctx context.Context, b *schema.Batch, rep *transformer.Report) error {
	keep := make([]bool, b.Len())
	seen := make(map[uint64][]int, b.Len())
	var key []byte
	for i := range b.Records {
		if i%cancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		key = b.Records[i].AppendRawKey(key[:0])
		h := xxh3.Hash(key)

		dup := false
		for _, j := range seen[h] {
			if b.Records[j].RawEqual(&b.Records[i]) {
				dup = true
				break
			}
		}
		if !dup {
			seen[h] = append(seen[h], i)
			keep[i] = true
		}
	}

	i := 0
	b.Filter(func(rec *schema.Record) bool {
		k := keep[i]
		i++
		if !k {
			rep.Reject(ReasonDuplicate, rec)
		}
		return k
	})
	return nil
}
