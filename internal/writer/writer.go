// Package writer persists the partitions of a run. Every partition becomes
// one artifact named {dataset}_{period}_{partition}: a file under the output
// directory for file sinks, a table for database sinks.
//
// Both sinks stage first and publish last. Files are written to temporary
// names and renamed only after every partition succeeded; tables are loaded
// under a staging name and swapped into place afterwards. A failed write
// returns an *etlerr.WriteError and leaves earlier outputs untouched.
package writer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"taxiprep/internal/config"
	"taxiprep/internal/split"
	"taxiprep/internal/storage"
)

// Artifact describes one published partition.
type Artifact struct {
	Partition string
	Target    string // file path or table name
	Rows      int
	Bytes     int64 // file sinks only
}

// Writer publishes the partitions of one run.
type Writer interface {
	Write(ctx context.Context, dataset, period string, parts []split.Partition, cols []string) ([]Artifact, error)
}

// Name returns the artifact base name of a partition.
func Name(dataset, period, partition string) string {
	return fmt.Sprintf("%s_%s_%s", dataset, period, partition)
}

// Open returns the writer for st. The close function releases a database
// connection when one was opened; it is never nil.
func Open(ctx context.Context, st config.Storage, log zerolog.Logger) (Writer, func(), error) {
	if st.IsFile() {
		w, err := NewFileWriter(st.Path, st.Kind, log)
		if err != nil {
			return nil, nil, err
		}
		return w, func() {}, nil
	}
	repo, err := storage.New(ctx, storage.Config{Kind: st.Kind, DSN: st.DSN, Schema: st.Schema})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s sink: %w", st.Kind, err)
	}
	return NewDBWriter(repo, st.Schema, log), repo.Close, nil
}
