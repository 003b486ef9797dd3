package builtin

import (
	"context"
	"fmt"

	"taxiprep/internal/schema"
	"taxiprep/internal/transformer"
)

// Require removes any record with a null in one of Fields. The drop reason
// names the first null field, e.g. "missing-fare_amount".
type Require struct {
	Fields []string
}

func (Require) Name() string { return "require" }

func (r Require) Apply(_ context.Context, b *schema.Batch, rep *transformer.Report) error {
	for _, f := range r.Fields {
		if !schema.Known(f) {
			return fmt.Errorf("require: unknown column %q", f)
		}
	}
	if err := b.Require(r.Name(), r.Fields...); err != nil {
		return err
	}

	rules := make([]transformer.Rule, len(r.Fields))
	for i, f := range r.Fields {
		rules[i] = transformer.Rule{
			Reason: "missing-" + f,
			Keep:   func(rec *schema.Record) bool { return !rec.IsNull(f) },
		}
	}
	transformer.ApplyRules(b, rep, rules)
	return nil
}
