// Package transformer runs the ordered cleaning and enrichment stages over an
// in-memory batch of trips.
//
// Every stage implements Stage and reports what it removed through a Report:
// per-reason drop counts, the first few rejected rows and stage-specific
// notes such as the quantile caps an outlier stage computed. Chain runs the
// stages strictly in order and tags any failure with the stage name.
package transformer

import (
	"context"
	"time"

	"taxiprep/internal/etlerr"
	"taxiprep/internal/schema"
)

// Stage is one named batch transformation. Stages remove rows and add
// columns; they never add rows.
type Stage interface {
	Name() string
	Apply(ctx context.Context, b *schema.Batch, rep *Report) error
}

// Chain is an ordered list of stages.
type Chain []Stage

// Names returns the stage names in run order.
func (c Chain) Names() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Name()
	}
	return out
}

// Run applies every stage to b in order. onStage, when non-nil, receives each
// stage report as soon as the stage finishes, including the failing one.
//
// The context is checked before each stage. A stage that leaves the batch
// empty fails the run with an EmptyResultError. All errors come back wrapped
// in an etlerr.StageError naming the stage.
func (c Chain) Run(ctx context.Context, b *schema.Batch, onStage func(Report, error)) ([]Report, error) {
	reports := make([]Report, 0, len(c))
	for _, s := range c {
		name := s.Name()
		if err := ctx.Err(); err != nil {
			return reports, etlerr.Stage(name, err)
		}

		rep := Report{Stage: name, In: b.Len()}
		start := time.Now()
		err := s.Apply(ctx, b, &rep)
		rep.Out = b.Len()
		rep.Duration = time.Since(start)
		if err == nil && rep.Out == 0 && rep.In > 0 {
			err = &etlerr.EmptyResultError{Stage: name}
		}

		reports = append(reports, rep)
		if onStage != nil {
			onStage(rep, err)
		}
		if err != nil {
			return reports, etlerr.Stage(name, err)
		}
	}
	return reports, nil
}
