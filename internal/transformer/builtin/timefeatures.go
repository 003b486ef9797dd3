package builtin

import (
	"context"
	"time"

	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

// TimeFeatures derives day of week (Monday=0), hour of day and time-of-day
// bucket for pickup and dropoff independently, from the wall-clock value of
// each timestamp.
type TimeFeatures struct{}

func (TimeFeatures) Name() string { return "time_features" }

func (t TimeFeatures) Apply(ctx context.Context, b *schema.Batch, _ *transformer.Report) error {
	if err := b.Require(t.Name(), schema.ColPickupTime, schema.ColDropoffTime); err != nil {
		return err
	}
	for i := range b.Records {
		if i%cancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r := &b.Records[i]
		if r.PickupTime != nil {
			r.DayOfWeekPickup, r.HourOfDayPickup, r.TimeBucketPickup = calendar(*r.PickupTime)
		}
		if r.DropoffTime != nil {
			r.DayOfWeekDropoff, r.HourOfDayDropoff, r.TimeBucketDropoff = calendar(*r.DropoffTime)
		}
	}
	b.AddColumns(schema.TimeColumns...)
	return nil
}

// DayOfWeek returns the weekday of ts with Monday=0 and Sunday=6.
func DayOfWeek(ts time.Time) int { return (int(ts.Weekday()) + 6) % 7 }

func calendar(ts time.Time) (int, int, schema.TimeBucket) {
	return DayOfWeek(ts), ts.Hour(), schema.BucketForHour(ts.Hour())
}
