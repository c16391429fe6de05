// Package database provides SQLite connectivity for DigiHome Core.
//
// It manages:
//   - The connection, with WAL mode and a busy timeout
//   - Schema migrations read from any fs.FS (normally the embedded
//     migrations package)
//   - Transactions through WithTx
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a default.
package database
