// Package storage is the registry of database sinks. Backends register a
// Factory for their kind from init; importing storage/all wires all of them.
//
// A Repository knows how to bulk-load rows into a named table and how to
// swap a fully loaded staging table into its final name, which is all the
// writer needs to replace a partition table without exposing half-written
// data.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"taxiprep/internal/ddl"
)

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name, e.g. "postgres".
	Kind string

	// DSN is passed to the backend driver unchanged.
	DSN string

	// Schema optionally qualifies every table name.
	Schema string
}

// Repository is the contract every database backend implements.
type Repository interface {
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	// CopyFrom bulk-loads rows into table. Every row holds one value per
	// column, in columns order. It returns the number of rows written.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Swap replaces target with staging in one transaction. staging no
	// longer exists afterwards; a previous target is dropped.
	Swap(ctx context.Context, staging, target string) error

	// Dialect is used to render DDL for the backend.
	Dialect() ddl.Dialect

	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering a kind twice
// replaces the previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Qualify prefixes table with schema when one is set.
func Qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
