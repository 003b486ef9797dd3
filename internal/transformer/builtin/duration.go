package builtin

import (
	"context"

	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

// ReasonTimestampInvalid is the drop reason for rows whose pickup or dropoff
// time is null or could not be parsed.
const ReasonTimestampInvalid = "timestamp-invalid"

// Duration derives trip_duration_minutes as dropoff minus pickup in
// fractional minutes. Rows without both timestamps are dropped. The sign is
// kept; Integrity rejects non-positive durations.
type Duration struct{}

func (Duration) Name() string { return "duration" }

func (d Duration) Apply(_ context.Context, b *schema.Batch, rep *transformer.Report) error {
	if err := b.Require(d.Name(), schema.ColPickupTime, schema.ColDropoffTime); err != nil {
		return err
	}
	transformer.ApplyRules(b, rep, []transformer.Rule{{
		Reason: ReasonTimestampInvalid,
		Keep: func(rec *schema.Record) bool {
			if rec.PickupTime == nil || rec.DropoffTime == nil {
				return false
			}
			rec.TripDurationMinutes = rec.DropoffTime.Sub(*rec.PickupTime).Minutes()
			return true
		},
	}})
	b.AddColumns(schema.ColTripDuration)
	return nil
}
