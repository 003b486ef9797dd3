package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"taxiprep/internal/etlerr"
	"taxiprep/internal/parser"
	"taxiprep/internal/schema"
	"taxiprep/internal/split"
)

// FileWriter writes each partition as one parquet or CSV file.
type FileWriter struct {
	dir    string
	format parser.Format
	log    zerolog.Logger

	// replace publishes one staged file; nil means CloseAtomicallyReplace.
	replace func(*renameio.PendingFile) error
}

// NewFileWriter returns a writer producing files of the named format in dir.
func NewFileWriter(dir, format string, log zerolog.Logger) (*FileWriter, error) {
	f, err := parser.Lookup(format)
	if err != nil {
		return nil, err
	}
	return &FileWriter{dir: dir, format: f, log: log}, nil
}

type staged struct {
	pf    *renameio.PendingFile
	final string
	art   Artifact
}

// published records one replaced artifact. backup is empty when no prior
// file existed.
type published struct {
	final, backup string
}

// Write stages every partition to a temporary file in the output directory
// and publishes them once all of them were written. The directory ends up
// holding either the previous artifact set or the complete new one.
func (w *FileWriter) Write(ctx context.Context, dataset, period string, parts []split.Partition, cols []string) ([]Artifact, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, &etlerr.WriteError{Target: w.dir, Err: err}
	}

	var done []staged
	cleanup := func() {
		for _, s := range done {
			_ = s.pf.Cleanup()
		}
	}

	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		final := filepath.Join(w.dir, Name(dataset, period, p.Name)+w.format.Ext)
		pf, size, err := w.stage(final, cols, p.Records)
		if err != nil {
			cleanup()
			return nil, &etlerr.WriteError{Target: final, Err: err}
		}
		done = append(done, staged{pf: pf, final: final, art: Artifact{
			Partition: p.Name, Target: final, Rows: len(p.Records), Bytes: size,
		}})
	}

	if err := w.publish(done); err != nil {
		cleanup()
		return nil, err
	}

	arts := make([]Artifact, 0, len(done))
	for _, s := range done {
		w.log.Info().
			Str("partition", s.art.Partition).
			Str("path", s.final).
			Int("rows", s.art.Rows).
			Str("size", humanize.Bytes(uint64(s.art.Bytes))).
			Msg("partition written")
		arts = append(arts, s.art)
	}
	return arts, nil
}

// publish moves every staged file into place. Prior artifacts are set aside
// first and restored when any partition fails to publish.
func (w *FileWriter) publish(set []staged) error {
	replace := w.replace
	if replace == nil {
		replace = (*renameio.PendingFile).CloseAtomicallyReplace
	}

	var out []published
	rollback := func() {
		for i := len(out) - 1; i >= 0; i-- {
			p := out[i]
			if p.backup == "" {
				_ = os.Remove(p.final)
				continue
			}
			if err := os.Rename(p.backup, p.final); err != nil {
				w.log.Error().Err(err).Str("path", p.final).Msg("restore previous artifact")
			}
		}
	}

	for i, s := range set {
		p := published{final: s.final}
		if _, err := os.Lstat(s.final); err == nil {
			p.backup = filepath.Join(w.dir, "."+filepath.Base(s.final)+".prev")
			if err := os.Rename(s.final, p.backup); err != nil {
				rollback()
				return &etlerr.WriteError{Target: s.final, Err: fmt.Errorf("set aside previous artifact: %w", err)}
			}
		}
		out = append(out, p)
		if err := replace(s.pf); err != nil {
			rollback()
			return &etlerr.WriteError{Target: s.final, Err: fmt.Errorf("publish after %d of %d: %w", i, len(set), err)}
		}
	}

	for _, p := range out {
		if p.backup != "" {
			_ = os.Remove(p.backup)
		}
	}
	return nil
}

// stage writes recs to a pending file next to final. The file is fsynced
// and renamed over final only when published.
func (w *FileWriter) stage(final string, cols []string, recs []schema.Record) (*renameio.PendingFile, int64, error) {
	pf, err := renameio.NewPendingFile(final, renameio.WithTempDir(w.dir), renameio.WithPermissions(0o644))
	if err != nil {
		return nil, 0, err
	}
	if err := w.format.Write(pf, cols, recs); err != nil {
		_ = pf.Cleanup()
		return nil, 0, err
	}
	st, err := pf.Stat()
	if err != nil {
		_ = pf.Cleanup()
		return nil, 0, err
	}
	return pf, st.Size(), nil
}
