// Package database provides the SQLite store behind the armband session
// audit trail.
//
// It manages:
//   - the connection, with WAL mode and a busy timeout
//   - schema migrations read from a registered fs.FS
//   - health checks for the startup sequence
//
// All queries use parameterised statements and the database file is
// created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.FromConfig(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Migrations are additive: new columns must
// be nullable or carry a default.
package database
