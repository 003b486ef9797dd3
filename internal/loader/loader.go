// Package loader turns a source path and a period selector into one in-memory
// batch of raw trip records.
//
// A file path is read as is. A directory is searched (non-recursively) for
// supported files whose names encode a matching YYYY-MM period; matches are
// read in file-name order and concatenated. Files that fail to read are
// skipped with a warning as long as at least one file succeeds.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"taxiprep/internal/datasource/file"
	"taxiprep/internal/etlerr"
	"taxiprep/internal/parser"
	"taxiprep/internal/schema"
)

// FileError records one input file that could not be read.
type FileError struct {
	Path string
	Err  error
}

// Report describes what Load read.
type Report struct {
	// Files lists the files read successfully, in read order.
	Files []string
	// Failed lists the files skipped because they could not be read.
	Failed []FileError
	// Rows is the number of records loaded.
	Rows int
	// Skipped is the number of unreadable rows dropped inside loaded files.
	Skipped int
}

// Load reads the trips under path selected by sel. The selector only applies
// to directories.
//
// Errors: NotFoundError when path does not exist or no file matches;
// SchemaError when a file lacks a trip column; LoadError when no matched
// file could be read.
func Load(ctx context.Context, path string, sel file.Selector, log zerolog.Logger) (*schema.Batch, Report, error) {
	var rep Report

	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, rep, &etlerr.NotFoundError{Path: path, Err: err}
		}
		return nil, rep, &etlerr.LoadError{Path: path, Err: err}
	}

	var files []string
	if st.IsDir() {
		files, err = file.Discover(path, sel, parser.Extensions()...)
		if err != nil {
			return nil, rep, &etlerr.LoadError{Path: path, Err: err}
		}
		if len(files) == 0 {
			return nil, rep, &etlerr.NotFoundError{Path: path, Period: sel.Label()}
		}
	} else {
		files = []string{path}
	}
	log.Debug().Str("source", path).Str("period", sel.Label()).Int("files", len(files)).Msg("resolved input files")

	parts := make([][]schema.Record, 0, len(files))
	var errs []error
	for _, f := range files {
		recs, skipped, err := readFile(ctx, f)
		if err != nil {
			var se *etlerr.SchemaError
			if errors.As(err, &se) || ctx.Err() != nil {
				return nil, rep, err
			}
			log.Warn().Err(err).Str("file", f).Msg("skipping unreadable input file")
			rep.Failed = append(rep.Failed, FileError{Path: f, Err: err})
			errs = append(errs, err)
			continue
		}
		log.Debug().Str("file", f).Int("rows", len(recs)).Int("skipped_rows", skipped).Msg("read input file")
		rep.Files = append(rep.Files, f)
		rep.Rows += len(recs)
		rep.Skipped += skipped
		parts = append(parts, recs)
	}
	if len(rep.Files) == 0 {
		return nil, rep, &etlerr.LoadError{Path: path, Err: errors.Join(errs...)}
	}

	all := make([]schema.Record, 0, rep.Rows)
	for _, p := range parts {
		all = append(all, p...)
	}
	return schema.NewBatch(all), rep, nil
}

func readFile(ctx context.Context, path string) ([]schema.Record, int, error) {
	f, ok := parser.ForPath(path)
	if !ok {
		return nil, 0, fmt.Errorf("unsupported file type %s", path)
	}
	return f.Read(ctx, path)
}
