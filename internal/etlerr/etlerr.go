// Package etlerr defines the error kinds surfaced by the trip preparation
// pipeline. Each kind is a concrete type so callers can branch with
// errors.As, and every wrapping kind implements Unwrap so the underlying
// cause (os.ErrNotExist, driver errors, context cancellation) stays
// reachable through errors.Is.
//
// StageError is the envelope used by the orchestrator: whichever kind a stage
// returns is wrapped with the stage name so the CLI can report which step
// failed without string matching.
package etlerr

import (
	"errors"
	"fmt"
)

// NotFoundError reports that the source path does not exist or that no input
// file matched the requested period.
type NotFoundError struct {
	// Path is the file or directory that was searched.
	Path string
	// Period is the requested selector rendered for humans, e.g. "2024-03",
	// "2023" or "all". Empty when the path itself is missing.
	Period string
	// Err is the filesystem cause, if any.
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Period != "" {
		return fmt.Sprintf("no input files for period %s under %s", e.Period, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("source %s not found: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("source %s not found", e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// LoadError reports that the input could not be read at all. Partial failures
// inside a directory are not LoadErrors; they are carried as warnings in the
// loader report.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaError reports a column that a stage requires but the data lacks.
type SchemaError struct {
	// Stage is the stage (or reader) that needed the column.
	Stage string
	// Column is the canonical column name that is missing.
	Column string
	// Source optionally names the file that lacked the column.
	Source string
}

func (e *SchemaError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: required column %q missing in %s", e.Stage, e.Column, e.Source)
	}
	return fmt.Sprintf("%s: required column %q missing", e.Stage, e.Column)
}

// EmptyResultError reports that a filtering stage removed every row.
type EmptyResultError struct {
	Stage string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s: no rows remain", e.Stage)
}

// WriteError reports that persisting the output failed. When a WriteError is
// returned no artifact of the run is visible at the destination.
type WriteError struct {
	// Target is the directory, file or table that could not be written.
	Target string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Target, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage wraps err with the stage name. A nil err stays nil and an error that
// already carries a stage keeps its original (innermost) stage.
func Stage(name string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: name, Err: err}
}

// StageOf returns the stage recorded on err, or "" when there is none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Kind returns a short, stable label for the error kind. It is used as a
// metrics label and in the run summary.
func Kind(err error) string {
	var (
		nf *NotFoundError
		le *LoadError
		sc *SchemaError
		er *EmptyResultError
		we *WriteError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sc):
		return "schema"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &er):
		return "empty_result"
	case errors.As(err, &we):
		return "write"
	case errors.As(err, &le):
		return "load"
	default:
		return "internal"
	}
}
