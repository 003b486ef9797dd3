package builtin

import (
	"context"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"taxiprep/internal/config"
	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

// Outlier drop reasons. Fixed rules are evaluated in the listed order before
// the quantile caps are computed.
const (
	ReasonDurationCap          = "duration-cap"
	ReasonZeroDistanceHighFare = "zero-distance-high-fare"
	ReasonShortDistanceHigh    = "short-distance-high-fare"
	ReasonLongDistanceShort    = "long-distance-short-duration"
	ReasonZoneOutOfRange       = "zone-out-of-range"
	ReasonFareCeiling          = "fare-ceiling"
	ReasonDistanceCap          = "distance-cap"
	ReasonFareQuantileCap      = "fare-quantile-cap"
	ReasonTotalQuantileCap     = "total-quantile-cap"
)

// Report note keys for the computed caps.
const (
	NoteFareCap  = "fare_cap"
	NoteTotalCap = "total_cap"
)

// Outlier removes implausible trips in two passes. The fixed rules encode
// domain limits (duration and distance ceilings, fare/distance mismatches,
// valid zone ids). The quantile pass then caps fare_amount and total_amount
// at the Quantile percentile of the rows that survived the fixed rules.
//
// Caps are a pure function of the batch being filtered; they are reported in
// the stage notes and never carried over to another batch.
type Outlier struct {
	Limits config.Outlier
}

func (Outlier) Name() string { return "outlier" }

func (o Outlier) Apply(ctx context.Context, b *schema.Batch, rep *transformer.Report) error {
	if err := b.Require(o.Name(), schema.ColTripDuration, schema.ColTripDistance, schema.ColFareAmount,
		schema.ColTotalAmount, schema.ColPickupZoneID, schema.ColDropoffZoneID); err != nil {
		return err
	}
	transformer.ApplyRules(b, rep, o.fixedRules())
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.Limits.Quantile <= 0 || b.Len() == 0 {
		return nil
	}

	fareCap, totalCap := Caps(b, o.Limits.Quantile)
	rep.Note(NoteFareCap, fareCap)
	rep.Note(NoteTotalCap, totalCap)
	ApplyCaps(b, rep, fareCap, totalCap)
	return nil
}

func (o Outlier) fixedRules() []transformer.Rule {
	l := o.Limits
	return []transformer.Rule{
		{Reason: ReasonDurationCap, Keep: func(r *schema.Record) bool {
			return r.TripDurationMinutes < l.MaxDurationMinutes
		}},
		{Reason: ReasonZeroDistanceHighFare, Keep: func(r *schema.Record) bool {
			d, okD := val(r.TripDistance)
			f, okF := val(r.FareAmount)
			return !(okD && okF && d == 0 && f > l.ZeroDistanceMaxFare)
		}},
		{Reason: ReasonShortDistanceHigh, Keep: func(r *schema.Record) bool {
			d, okD := val(r.TripDistance)
			f, okF := val(r.FareAmount)
			return !(okD && okF && d < l.ShortDistanceMiles && f > l.ShortDistanceMaxFare)
		}},
		{Reason: ReasonLongDistanceShort, Keep: func(r *schema.Record) bool {
			d, ok := val(r.TripDistance)
			return !(ok && d > l.LongDistanceMiles && r.TripDurationMinutes < l.LongDistanceMinMinutes)
		}},
		{Reason: ReasonZoneOutOfRange, Keep: func(r *schema.Record) bool {
			return inRange(r.PickupZoneID, l.MinZoneID, l.MaxZoneID) && inRange(r.DropoffZoneID, l.MinZoneID, l.MaxZoneID)
		}},
		{Reason: ReasonFareCeiling, Keep: func(r *schema.Record) bool {
			f, ok := val(r.FareAmount)
			return ok && f <= l.MaxFare
		}},
		{Reason: ReasonDistanceCap, Keep: func(r *schema.Record) bool {
			d, ok := val(r.TripDistance)
			return ok && d <= l.MaxDistanceMiles
		}},
	}
}

func inRange(id *int64, lo, hi int64) bool {
	return id != nil && *id >= lo && *id <= hi
}

// Caps returns the q-th percentile of fare_amount and total_amount over the
// non-null values in b.
func Caps(b *schema.Batch, q float64) (fareCap, totalCap float64) {
	fares := make([]float64, 0, b.Len())
	totals := make([]float64, 0, b.Len())
	for i := range b.Records {
		if f, ok := val(b.Records[i].FareAmount); ok {
			fares = append(fares, f)
		}
		if t, ok := val(b.Records[i].TotalAmount); ok {
			totals = append(totals, t)
		}
	}
	return Percentile(fares, q), Percentile(totals, q)
}

// ApplyCaps removes rows whose fare or total exceeds its cap, or is null.
// It returns the number of rows removed.
func ApplyCaps(b *schema.Batch, rep *transformer.Report, fareCap, totalCap float64) int {
	before := b.Len()
	transformer.ApplyRules(b, rep, []transformer.Rule{
		{Reason: ReasonFareQuantileCap, Keep: func(r *schema.Record) bool {
			f, ok := val(r.FareAmount)
			return ok && f <= fareCap
		}},
		{Reason: ReasonTotalQuantileCap, Keep: func(r *schema.Record) bool {
			t, ok := val(r.TotalAmount)
			return ok && t <= totalCap
		}},
	})
	return before - b.Len()
}

// Percentile returns the q-th quantile (0 <= q <= 1) of xs using linear
// interpolation between the closest ranks: the value at fractional position
// (n-1)*q of the sorted data. It returns NaN for empty input. xs is not
// modified.
func Percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := slices.Clone(xs)
	slices.Sort(s)

	// stat.LinInterp places s[i] at cumulative weight i+1 of n; shift q so
	// that s[i] sits at position i of n-1 instead.
	n := float64(len(s))
	p := min(1, ((n-1)*q+1)/n)
	return stat.Quantile(p, stat.LinInterp, s, nil)
}
