package builtin

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"taxiprep/internal/config"
	"taxiprep/internal/etlerr"
	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

func TestDuration(t *testing.T) {
	t.Parallel()

	noDrop := trip(2, 10, 2, 9)
	noDrop.DropoffTime = nil
	neg := trip(3, -4.5, 2, 9)

	b := schema.NewBatch([]schema.Record{trip(1, 12.5, 2, 9), noDrop, neg})
	rep := apply(t, Duration{}, b)

	if !b.Has(schema.ColTripDuration) {
		t.Fatalf("duration column not added")
	}
	if got := lines(b); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("kept got %v", got)
	}
	if b.Records[0].TripDurationMinutes != 12.5 || b.Records[1].TripDurationMinutes != -4.5 {
		t.Fatalf("durations got %v, %v", b.Records[0].TripDurationMinutes, b.Records[1].TripDurationMinutes)
	}
	if rep.Dropped[ReasonTimestampInvalid] != 1 {
		t.Fatalf("dropped got %v", rep.Dropped)
	}
}

func TestDuration_MissingColumn(t *testing.T) {
	t.Parallel()

	b := schema.NewBatch([]schema.Record{trip(1, 10, 2, 9)}, schema.ColFareAmount)
	err := Duration{}.Apply(ctx(), b, newReport())
	var se *etlerr.SchemaError
	if !errors.As(err, &se) || se.Column != schema.ColPickupTime {
		t.Fatalf("got %v want SchemaError for pickup_time", err)
	}
}

// Five trips, one with dropoff before pickup: four remain and the rejected
// row is attributed to duration-sign.
func TestIntegrity_FiveRowDurationSign(t *testing.T) {
	t.Parallel()

	bad := trip(3, 10, 2, 9)
	bad.DropoffTime = schema.Time(bad.PickupTime.Add(-7 * time.Minute))

	b := withDuration(t, trip(1, 10, 2, 9), trip(2, 20, 5, 18), bad, trip(4, 8, 1, 7), trip(5, 30, 9, 31))
	rep := apply(t, Integrity{}, b)

	if b.Len() != 4 {
		t.Fatalf("rows got %d want 4", b.Len())
	}
	if got := lines(b); !reflect.DeepEqual(got, []int{1, 2, 4, 5}) {
		t.Fatalf("kept got %v", got)
	}
	if !reflect.DeepEqual(rep.Dropped, map[string]int{ReasonDurationSign: 1}) {
		t.Fatalf("dropped got %v", rep.Dropped)
	}
	if rep.Samples[0].Line != 3 || rep.Samples[0].Reason != ReasonDurationSign {
		t.Fatalf("sample got %+v", rep.Samples[0])
	}
}

func TestIntegrity_FirstFailingRuleWins(t *testing.T) {
	t.Parallel()

	same := trip(1, 0, 2, 9) // dropoff == pickup
	zeroDist := trip(2, 10, 0, -1)
	negTotal := trip(3, 10, 2, 9)
	negTotal.TotalAmount = schema.Float(-0.5)
	nullDist := trip(4, 10, 2, 9)
	nullDist.TripDistance = nil

	b := withDuration(t, same, zeroDist, negTotal, nullDist, trip(5, 10, 2, 9))
	rep := apply(t, Integrity{}, b)

	want := map[string]int{
		ReasonDurationSign:        1,
		ReasonDistanceNonPositive: 2,
		ReasonAmountNegative:      1,
	}
	if !reflect.DeepEqual(rep.Dropped, want) {
		t.Fatalf("dropped got %v want %v", rep.Dropped, want)
	}
	if got := lines(b); !reflect.DeepEqual(got, []int{5}) {
		t.Fatalf("kept got %v", got)
	}
}

func TestIntegrity_NeedsDuration(t *testing.T) {
	t.Parallel()

	b := schema.NewBatch([]schema.Record{trip(1, 10, 2, 9)})
	err := Integrity{}.Apply(ctx(), b, newReport())
	var se *etlerr.SchemaError
	if !errors.As(err, &se) || se.Column != schema.ColTripDuration {
		t.Fatalf("got %v want SchemaError for %s", err, schema.ColTripDuration)
	}
}

func defaultOutlier() Outlier { return Outlier{Limits: config.Default().Outlier} }

func TestOutlier_ZeroDistanceHighFare(t *testing.T) {
	t.Parallel()

	b := withDuration(t, trip(1, 10, 0, 15), trip(2, 10, 0, 5))
	rep := apply(t, defaultOutlier(), b)

	if got := lines(b); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("kept got %v", got)
	}
	if rep.Dropped[ReasonZeroDistanceHighFare] != 1 {
		t.Fatalf("dropped got %v", rep.Dropped)
	}
}

func TestOutlier_FixedRules(t *testing.T) {
	t.Parallel()

	zoneHigh := trip(5, 15, 3, 14)
	zoneHigh.DropoffZoneID = schema.Int(264)
	zoneNull := trip(6, 15, 3, 14)
	zoneNull.PickupZoneID = nil

	cases := []struct {
		name   string
		rec    schema.Record
		reason string
	}{
		{"duration_at_cap", trip(1, 180, 30, 90), ReasonDurationCap},
		{"short_distance_high_fare", trip(2, 15, 0.5, 60), ReasonShortDistanceHigh},
		{"long_distance_short_duration", trip(3, 9.5, 21, 70), ReasonLongDistanceShort},
		{"fare_ceiling", trip(4, 60, 40, 501), ReasonFareCeiling},
		{"zone_out_of_range", zoneHigh, ReasonZoneOutOfRange},
		{"zone_null", zoneNull, ReasonZoneOutOfRange},
		{"distance_cap", trip(7, 170, 50.5, 200), ReasonDistanceCap},
		{"survivor", trip(8, 179, 50, 200), ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			b := withDuration(t, c.rec)
			rep := transformer.Report{}
			transformer.ApplyRules(b, &rep, defaultOutlier().fixedRules())
			if c.reason == "" {
				if b.Len() != 1 {
					t.Fatalf("expected survivor, dropped %v", rep.Dropped)
				}
				return
			}
			if rep.Dropped[c.reason] != 1 {
				t.Fatalf("dropped got %v want %s", rep.Dropped, c.reason)
			}
		})
	}
}

func TestOutlier_QuantileCaps(t *testing.T) {
	t.Parallel()

	recs := make([]schema.Record, 400)
	for i := range recs {
		recs[i] = trip(i+1, 15, 2, float64(i+1)) // fares 1..400, totals 4..403
	}
	b := withDuration(t, recs...)
	rep := apply(t, defaultOutlier(), b)

	// fares: pos = 399*0.995 = 397.005 -> 398 + 0.005*(399-398)
	if got := rep.Notes[NoteFareCap]; math.Abs(got-398.005) > 1e-9 {
		t.Fatalf("fare cap got %v", got)
	}
	if got := rep.Notes[NoteTotalCap]; math.Abs(got-401.005) > 1e-9 {
		t.Fatalf("total cap got %v", got)
	}
	if rep.Dropped[ReasonFareQuantileCap] != 2 || rep.Dropped[ReasonTotalQuantileCap] != 0 {
		t.Fatalf("dropped got %v", rep.Dropped)
	}
	if b.Len() != 398 {
		t.Fatalf("rows got %d", b.Len())
	}

	// Re-applying the same caps to the filtered batch removes nothing.
	again := transformer.Report{}
	if n := ApplyCaps(b, &again, rep.Notes[NoteFareCap], rep.Notes[NoteTotalCap]); n != 0 {
		t.Fatalf("second pass removed %d rows", n)
	}
}

func TestOutlier_QuantileOverrideAndDisable(t *testing.T) {
	t.Parallel()

	recs := make([]schema.Record, 10)
	for i := range recs {
		recs[i] = trip(i+1, 15, 2, float64(10*(i+1)))
	}

	o := defaultOutlier()
	o.Limits.Quantile = 0
	b := withDuration(t, recs...)
	rep := apply(t, o, b)
	if b.Len() != 10 || rep.Notes != nil {
		t.Fatalf("disabled quantile still filtered: %d rows, notes %v", b.Len(), rep.Notes)
	}

	s, err := Build(config.Transform{Kind: config.KindOutlier, Options: config.Options{"quantile": 0.5}}, Deps{Outlier: config.Default().Outlier})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b = withDuration(t, recs...)
	rep = apply(t, s, b)
	if rep.Notes[NoteFareCap] != 55 || b.Len() != 5 {
		t.Fatalf("median cap got %v, rows %d", rep.Notes[NoteFareCap], b.Len())
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	cases := []struct {
		xs   []float64
		q    float64
		want float64
	}{
		{[]float64{4, 1, 3, 2}, 0.5, 2.5},
		{[]float64{4, 1, 3, 2}, 0, 1},
		{[]float64{4, 1, 3, 2}, 1, 4},
		{[]float64{7}, 0.995, 7},
		{[]float64{10, 20, 30, 40, 50}, 0.9, 46},
		{[]float64{0, 100}, 0.25, 25},
		{[]float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, 0.995, 9.955},
		{[]float64{2, 2, 2, 9}, 0.5, 2},
	}
	for _, c := range cases {
		if got := Percentile(c.xs, c.q); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("Percentile(%v, %v) got %v want %v", c.xs, c.q, got, c.want)
		}
	}
	if !math.IsNaN(Percentile(nil, 0.5)) {
		t.Fatalf("empty input should be NaN")
	}
	xs := []float64{3, 1, 2}
	Percentile(xs, 0.5)
	if !reflect.DeepEqual(xs, []float64{3, 1, 2}) {
		t.Fatalf("input was reordered: %v", xs)
	}
}

// Random trips, many of them broken, must satisfy every post-filter invariant
// once Duration, Integrity and Outlier have run.
func TestFilters_InvariantsHoldOnRandomTrips(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 7))
	recs := make([]schema.Record, 5000)
	for i := range recs {
		r := trip(i, rng.Float64()*300-30, rng.Float64()*80-5, rng.Float64()*900-50)
		r.TotalAmount = schema.Float(*r.FareAmount + rng.Float64()*40 - 5)
		r.PickupZoneID = schema.Int(rng.Int64N(300) - 10)
		r.DropoffZoneID = schema.Int(rng.Int64N(300) - 10)
		if rng.IntN(50) == 0 {
			r.DropoffTime = nil
		}
		recs[i] = r
	}

	b := schema.NewBatch(recs)
	chain := transformer.Chain{Duration{}, Integrity{}, defaultOutlier()}
	reports, err := chain.Run(ctx(), b, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if b.Len() == 0 {
		t.Fatalf("everything was filtered")
	}

	caps := reports[2].Notes
	for _, r := range b.Records {
		switch {
		case !(r.TripDurationMinutes > 0 && r.TripDurationMinutes < 180):
			t.Fatalf("duration %v out of range", r.TripDurationMinutes)
		case !(*r.TripDistance > 0 && *r.TripDistance <= 50):
			t.Fatalf("distance %v out of range", *r.TripDistance)
		case *r.FareAmount < 0 || *r.TotalAmount < 0:
			t.Fatalf("negative amount %v/%v", *r.FareAmount, *r.TotalAmount)
		case *r.FareAmount > caps[NoteFareCap] || *r.TotalAmount > caps[NoteTotalCap]:
			t.Fatalf("amount above cap %v/%v", *r.FareAmount, *r.TotalAmount)
		case *r.PickupZoneID < 1 || *r.PickupZoneID > 263 || *r.DropoffZoneID < 1 || *r.DropoffZoneID > 263:
			t.Fatalf("zone out of range %d/%d", *r.PickupZoneID, *r.DropoffZoneID)
		case !r.PickupTime.Before(*r.DropoffTime):
			t.Fatalf("dropoff not after pickup")
		}
	}
}
