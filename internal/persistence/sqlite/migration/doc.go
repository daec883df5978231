// Package migration provides the SQLite connection setup and the versioned
// schema migrations of the booking store.
//
// Migrations are embedded into the binary and follow the naming convention
// {version}_{description}.sql (e.g., "001_initial_schema.sql"). Applied
// versions are tracked in the schema_migrations table so each migration runs
// exactly once, inside its own transaction.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig("datebooking.db"))
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(migration.NewSQLiteExecutor(db), migration.Embedded(), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
