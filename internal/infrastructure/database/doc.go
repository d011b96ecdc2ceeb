// Package database provides SQLite connectivity for the react service.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Versioned schema migrations, one transaction each
//   - Connection pooling and lifecycle management
//
// The only durable data react keeps is run traces; reactions and runs
// are never persisted.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files live in the top-level migrations directory and are
// embedded into the binary. New columns must be nullable or carry a
// default so that a down migration never loses data.
package database
