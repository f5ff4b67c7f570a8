// Package database provides SQLite persistence infrastructure for Doorlink Core.
//
// This package manages:
//   - Opening the database with WAL mode, busy timeout, and foreign keys
//   - Embedded schema migrations (applied at startup, per-migration atomicity)
//   - Health checks and connection lifecycle
//
// The connection pool is capped to a single connection: SQLite supports one
// writer, and the reconciliation engine scopes each inbound message to its
// own transaction on that connection.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "data/doorlink.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
