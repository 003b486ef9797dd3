package builtin

import (
	"context"

	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

// ZoneLookup resolves a zone id to its attributes.
type ZoneLookup interface {
	Zone(id int64) (schema.Zone, bool)
}

// ZoneEnricher left joins pickup and dropoff zone ids against Lookup. Rows
// are never dropped: ids without a match, and null ids, get null zone
// attributes. The joined columns carry _pickup and _dropoff suffixes; the
// lookup key itself is not added.
type ZoneEnricher struct {
	Lookup ZoneLookup
}

func (ZoneEnricher) Name() string { return "zones" }

func (z ZoneEnricher) Apply(ctx context.Context, b *schema.Batch, rep *transformer.Report) error {
	if err := b.Require(z.Name(), schema.ColPickupZoneID, schema.ColDropoffZoneID); err != nil {
		return err
	}
	var unmatchedPU, unmatchedDO int
	for i := range b.Records {
		if i%cancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r := &b.Records[i]
		var ok bool
		if r.PickupZone, ok = z.zone(r.PickupZoneID); !ok {
			unmatchedPU++
		}
		if r.DropoffZone, ok = z.zone(r.DropoffZoneID); !ok {
			unmatchedDO++
		}
	}
	b.AddColumns(schema.ZoneColumns...)
	rep.Note("unmatched_pickup", float64(unmatchedPU))
	rep.Note("unmatched_dropoff", float64(unmatchedDO))
	return nil
}

func (z ZoneEnricher) zone(id *int64) (schema.Zone, bool) {
	if id == nil || z.Lookup == nil {
		return schema.Zone{}, false
	}
	return z.Lookup.Zone(*id)
}
