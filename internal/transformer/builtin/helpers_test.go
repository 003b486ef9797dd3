package builtin

import (
	"context"
	"testing"
	"time"

	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

var base = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC) // a Monday

// trip builds a complete raw record.
func trip(line int, minutes, dist, fare float64) schema.Record {
	pu := base.Add(time.Duration(line) * time.Minute)
	return schema.Record{
		PickupTime:     schema.Time(pu),
		DropoffTime:    schema.Time(pu.Add(time.Duration(minutes * float64(time.Minute)))),
		PickupZoneID:   schema.Int(132),
		DropoffZoneID:  schema.Int(236),
		PassengerCount: schema.Int(1),
		TripDistance:   schema.Float(dist),
		FareAmount:     schema.Float(fare),
		TotalAmount:    schema.Float(fare + 3),
		Source:         "test.parquet",
		Line:           line,
	}
}

// apply runs one stage and fails the test on error.
func apply(t *testing.T, s transformer.Stage, b *schema.Batch) transformer.Report {
	t.Helper()
	rep := transformer.Report{Stage: s.Name(), In: b.Len()}
	if err := s.Apply(context.Background(), b, &rep); err != nil {
		t.Fatalf("%s: %v", s.Name(), err)
	}
	rep.Out = b.Len()
	return rep
}

// withDuration returns a batch that already went through Duration.
func withDuration(t *testing.T, recs ...schema.Record) *schema.Batch {
	t.Helper()
	b := schema.NewBatch(recs)
	apply(t, Duration{}, b)
	return b
}

func lines(b *schema.Batch) []int {
	out := make([]int, b.Len())
	for i, r := range b.Records {
		out[i] = r.Line
	}
	return out
}

func ctx() context.Context { return context.Background() }

func newReport() *transformer.Report { return &transformer.Report{} }
