// Package database provides SQLite storage for services built on the
// skeleton.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Applying embedded schema migrations in version order
//   - Connection lifecycle and health checks
//
// The core itself stores nothing; a service opens a database only when its
// configuration has a database section. The echo sample uses it for its
// message journal.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is created with mode 0600
//
// Usage:
//
//	db, err := database.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
