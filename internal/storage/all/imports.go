// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. It makes the following kinds
// available at runtime:
//
//   - "postgres" (taxiprep/internal/storage/postgres)
//   - "sqlite"   (taxiprep/internal/storage/sqlite)
//   - "mssql"    (taxiprep/internal/storage/mssql)
//   - "mysql"    (taxiprep/internal/storage/mysql)
//
// Typical usage, in cmd/taxiprep:
//
//	import _ "taxiprep/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
package all

import (
	_ "taxiprep/internal/storage/mssql"
	_ "taxiprep/internal/storage/mysql"
	_ "taxiprep/internal/storage/postgres"
	_ "taxiprep/internal/storage/sqlite"
)
