package builtin

import (
	"context"

	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

// Integrity drop reasons, in evaluation order.
const (
	ReasonDurationSign        = "duration-sign"
	ReasonDurationNonPositive = "duration-nonpositive"
	ReasonDistanceNonPositive = "distance-nonpositive"
	ReasonAmountNegative      = "amount-negative"
)

// Integrity removes trips that cannot be real: dropoff not after pickup,
// a non-positive duration or distance, or a negative fare or total. Null
// distances and amounts fail their predicate.
type Integrity struct{}

func (Integrity) Name() string { return "integrity" }

func (s Integrity) Apply(_ context.Context, b *schema.Batch, rep *transformer.Report) error {
	if err := b.Require(s.Name(), schema.ColTripDuration, schema.ColTripDistance, schema.ColFareAmount, schema.ColTotalAmount); err != nil {
		return err
	}
	transformer.ApplyRules(b, rep, integrityRules)
	return nil
}

var integrityRules = []transformer.Rule{
	{Reason: ReasonDurationSign, Keep: func(r *schema.Record) bool {
		return r.PickupTime != nil && r.DropoffTime != nil && r.PickupTime.Before(*r.DropoffTime)
	}},
	{Reason: ReasonDurationNonPositive, Keep: func(r *schema.Record) bool { return r.TripDurationMinutes > 0 }},
	{Reason: ReasonDistanceNonPositive, Keep: func(r *schema.Record) bool {
		d, ok := val(r.TripDistance)
		return ok && d > 0
	}},
	{Reason: ReasonAmountNegative, Keep: func(r *schema.Record) bool {
		f, okF := val(r.FareAmount)
		t, okT := val(r.TotalAmount)
		return okF && okT && f >= 0 && t >= 0
	}},
}

// val dereferences an optional measure.
func val(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
