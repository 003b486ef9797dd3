// Package pipeline owns one preparation run: it loads the zone table and the
// source batch, runs the configured stage chain, splits the result and
// publishes the partitions.
//
// Steps run strictly in order and the batch lives in memory for the whole
// run. Nothing is written before the final step, so a run that fails or is
// cancelled earlier leaves the destination untouched.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxiprep/internal/config"
	"taxiprep/internal/datasource/file"
	"taxiprep/internal/etlerr"
	"taxiprep/internal/loader"
	"taxiprep/internal/metrics"
	"taxiprep/internal/schema"
	"taxiprep/internal/split"
	"taxiprep/internal/transformer"
	"taxiprep/internal/transformer/builtin"
	"taxiprep/internal/writer"
	"taxiprep/internal/zones"
)

// Step names outside the stage chain.
const (
	StepZones = "load_zones"
	StepLoad  = "load"
	StepSplit = "split"
	StepWrite = "write"
)

// ErrFullRunNotConfirmed is returned for a directory source with neither
// year nor month when the full history was not explicitly requested.
var ErrFullRunNotConfirmed = errors.New("no year or month selected; set force_full_run to process the full history")

// Options carries run-scoped collaborators.
type Options struct {
	Logger zerolog.Logger
	// Tracer defaults to the global tracer.
	Tracer trace.Tracer
}

// PartitionSize is the row count of one partition.
type PartitionSize struct {
	Name string
	Rows int
}

// Result summarizes a successful run.
type Result struct {
	RunID      string
	Period     string
	Load       loader.Report
	Stages     []transformer.Report
	Partitions []PartitionSize
	Artifacts  []writer.Artifact
	Duration   time.Duration
}

// openWriter is a test seam.
var openWriter = writer.Open

// Run executes the pipeline described by cfg. Failures come back as an
// *etlerr.StageError naming the failing step.
func Run(ctx context.Context, cfg config.Pipeline, opts Options) (*Result, error) {
	start := time.Now()
	sel := file.Selector{Year: cfg.Source.Year, Month: cfg.Source.Month}
	if err := checkFullRun(cfg.Source, sel); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString(), Period: periodLabel(cfg.Source.Path, sel)}
	log := opts.Logger.With().Str("run_id", res.RunID).Str("job", cfg.Job).Logger()
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("taxiprep/pipeline")
	}

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", res.RunID),
		attribute.String("period", res.Period),
	))
	defer span.End()

	log.Info().
		Str("source", cfg.Source.Path).
		Str("period", res.Period).
		Str("sink", cfg.Storage.Kind).
		Msg("pipeline: starting run")

	r := &run{cfg: cfg, log: log, tracer: tracer, res: res}
	err := r.execute(ctx, sel)
	res.Duration = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("stage", etlerr.StageOf(err)).Str("kind", etlerr.Kind(err)).Msg("pipeline: run failed")
		return nil, err
	}

	log.Info().
		Int("loaded", res.Load.Rows).
		Int("files", len(res.Load.Files)).
		Int("artifacts", len(res.Artifacts)).
		Dur("duration", res.Duration).
		Msg("pipeline: run completed")
	return res, nil
}

// checkFullRun rejects an unselected directory run unless forced. A single
// file is read whole regardless of the selector.
func checkFullRun(src config.Source, sel file.Selector) error {
	if !sel.IsZero() || src.ForceFullRun {
		return nil
	}
	st, err := os.Stat(src.Path)
	if err != nil || !st.IsDir() {
		return nil
	}
	return ErrFullRunNotConfirmed
}

// periodLabel names the artifacts. A single file contributes the period in
// its name when the selector has none.
func periodLabel(path string, sel file.Selector) string {
	if sel.IsZero() {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			if p, ok := file.ParsePeriod(filepath.Base(path)); ok {
				return file.Selector{Year: p.Year, Month: p.Month}.Label()
			}
		}
	}
	return sel.Label()
}

type run struct {
	cfg    config.Pipeline
	log    zerolog.Logger
	tracer trace.Tracer
	res    *Result
}

func (r *run) execute(ctx context.Context, sel file.Selector) error {
	var lookup *zones.Lookup
	if needsZones(r.cfg.Stages()) {
		err := r.step(ctx, StepZones, func(ctx context.Context) error {
			var err error
			lookup, err = zones.Load(ctx, r.cfg.Zones.Path)
			if err == nil {
				r.log.Debug().Str("path", r.cfg.Zones.Path).Int("zones", lookup.Len()).Msg("zone table loaded")
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	deps := builtin.Deps{Outlier: r.cfg.Outlier}
	if lookup != nil {
		deps.Zones = lookup
	}
	chain, err := builtin.BuildChain(r.cfg.Stages(), deps)
	if err != nil {
		return etlerr.Stage("build", err)
	}

	var b *schema.Batch
	err = r.step(ctx, StepLoad, func(ctx context.Context) error {
		var (
			rep loader.Report
			err error
		)
		b, rep, err = loader.Load(ctx, r.cfg.Source.Path, sel, r.log)
		r.res.Load = rep
		if err != nil {
			return err
		}
		for _, f := range rep.Failed {
			r.log.Warn().Err(f.Err).Str("file", f.Path).Msg("input file skipped")
		}
		metrics.RecordRows(r.cfg.Job, StepLoad, "loaded", int64(rep.Rows))
		metrics.RecordRows(r.cfg.Job, StepLoad, "unreadable", int64(rep.Skipped))
		r.log.Info().
			Int("files", len(rep.Files)).
			Int("failed_files", len(rep.Failed)).
			Int("rows", rep.Rows).
			Int("unreadable_rows", rep.Skipped).
			Msg("load")
		return nil
	})
	if err != nil {
		return err
	}

	reports, err := traced(chain, r.tracer).Run(ctx, b, r.onStage)
	r.res.Stages = reports
	if err != nil {
		return err
	}

	var parts []split.Partition
	err = r.step(ctx, StepSplit, func(context.Context) error {
		parts = split.Split(b.Records, r.cfg.Split)
		for _, p := range parts {
			r.res.Partitions = append(r.res.Partitions, PartitionSize{Name: p.Name, Rows: len(p.Records)})
			r.log.Info().Str("partition", p.Name).Int("rows", len(p.Records)).Msg("split")
		}
		return nil
	})
	if err != nil {
		return err
	}

	return r.step(ctx, StepWrite, func(ctx context.Context) error {
		w, closeFn, err := openWriter(ctx, r.cfg.Storage, r.log)
		if err != nil {
			return &etlerr.WriteError{Target: r.cfg.Storage.Kind, Err: err}
		}
		defer closeFn()

		arts, err := w.Write(ctx, r.cfg.Dataset, r.res.Period, parts, b.Columns())
		if err != nil {
			return err
		}
		r.res.Artifacts = arts
		for _, a := range arts {
			metrics.RecordRows(r.cfg.Job, StepWrite, "written", int64(a.Rows))
		}
		return nil
	})
}

// step runs fn as a named, traced and measured step outside the chain.
func (r *run) step(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return etlerr.Stage(name, err)
	}
	ctx, span := r.tracer.Start(ctx, "step."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStep(r.cfg.Job, name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return etlerr.Stage(name, err)
	}
	return nil
}

// onStage logs and measures one finished chain stage.
func (r *run) onStage(rep transformer.Report, err error) {
	metrics.RecordStep(r.cfg.Job, rep.Stage, err, rep.Duration)
	for _, reason := range rep.Reasons() {
		metrics.RecordRows(r.cfg.Job, rep.Stage, reason, int64(rep.Dropped[reason]))
	}

	ev := r.log.Info()
	if err != nil {
		ev = r.log.Error().Err(err)
	}
	ev.Str("stage", rep.Stage).
		Int("in", rep.In).
		Int("out", rep.Out).
		Int("dropped", rep.DroppedTotal()).
		Dur("duration", rep.Duration).
		Msg(rep.Summary())

	if len(rep.Samples) > 0 && r.log.GetLevel() <= zerolog.DebugLevel {
		r.log.Debug().Msgf("%s rejects: %d (showing first %d)", rep.Stage, rep.DroppedTotal(), len(rep.Samples))
		for i, s := range rep.Samples {
			r.log.Debug().Msgf("  #%03d: %s", i+1, s)
		}
	}
}

func needsZones(ts []config.Transform) bool {
	for _, t := range ts {
		if t.Kind == config.KindZones {
			return true
		}
	}
	return false
}
