package writer

import (
	"context"

	"github.com/rs/zerolog"

	"taxiprep/internal/ddl"
	"taxiprep/internal/etlerr"
	"taxiprep/internal/schema"
	"taxiprep/internal/split"
	"taxiprep/internal/storage"
)

// DefaultBatchSize is the number of rows per CopyFrom call.
const DefaultBatchSize = 5000

// stagingSuffix marks tables that are still being loaded.
const stagingSuffix = "__staging"

// DBWriter loads each partition into its own table through a storage
// backend.
type DBWriter struct {
	repo      storage.Repository
	schema    string
	batchSize int
	log       zerolog.Logger
}

// NewDBWriter returns a writer loading into repo; tables are qualified with
// dbSchema when it is set.
func NewDBWriter(repo storage.Repository, dbSchema string, log zerolog.Logger) *DBWriter {
	return &DBWriter{repo: repo, schema: dbSchema, batchSize: DefaultBatchSize, log: log}
}

// Write loads every partition into a staging table and swaps them all into
// place once every load succeeded.
func (w *DBWriter) Write(ctx context.Context, dataset, period string, parts []split.Partition, cols []string) ([]Artifact, error) {
	var staged []string
	dropStaged := func() {
		for _, s := range staged {
			// Best effort; the next run recreates staging tables anyway.
			_ = w.repo.Exec(context.WithoutCancel(ctx), ddl.DropTableSQL(s, w.repo.Dialect()))
		}
	}

	arts := make([]Artifact, 0, len(parts))
	for _, p := range parts {
		target := storage.Qualify(w.schema, Name(dataset, period, p.Name))
		stage := target + stagingSuffix
		staged = append(staged, stage)

		if err := storage.EnsureTable(ctx, w.repo, stage, cols); err != nil {
			dropStaged()
			return nil, &etlerr.WriteError{Target: target, Err: err}
		}
		n, err := w.load(ctx, stage, cols, p.Records)
		if err != nil {
			dropStaged()
			return nil, &etlerr.WriteError{Target: target, Err: err}
		}
		arts = append(arts, Artifact{Partition: p.Name, Target: target, Rows: int(n)})
	}

	for i, a := range arts {
		if err := w.repo.Swap(ctx, staged[i], a.Target); err != nil {
			dropStaged()
			return nil, &etlerr.WriteError{Target: a.Target, Err: err}
		}
		w.log.Info().
			Str("partition", a.Partition).
			Str("table", a.Target).
			Int("rows", a.Rows).
			Msg("partition written")
	}
	return arts, nil
}

// load streams recs into table in batches.
func (w *DBWriter) load(ctx context.Context, table string, cols []string, recs []schema.Record) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan []any, w.batchSize)
	go func() {
		defer close(rows)
		for i := range recs {
			select {
			case rows <- recs[i].Values(cols):
			case <-ctx.Done():
				return
			}
		}
	}()

	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		return w.repo.CopyFrom(ctx, table, columns, batch)
	}
	return storage.LoadBatches(ctx, cols, rows, w.batchSize, copyFn, w.log.With().Str("table", table).Logger())
}
