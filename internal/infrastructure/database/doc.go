// Package database opens the bridge's SQLite store and applies schema
// migrations to it.
//
// The store is small: it records which bus devices each gateway reported
// so operators can see what is attached without a live session. SQLite
// runs with a single pooled connection, WAL journaling and a busy timeout
// taken from the database config section.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations live in an fs.FS as YYYYMMDD_HHMMSS_description.up.sql with
// an optional .down.sql partner. Applied versions are tracked in the
// schema_migrations table.
package database
