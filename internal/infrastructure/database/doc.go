// Package database owns the embedded SQLite store for Terminal Core.
//
// Two kinds of data live in it:
//
//   - Static plant configuration: devices, registers, tanks, products.
//     Written at commissioning time, read once at startup by the plant
//     registry.
//   - The blend archive: one record per finished operation plus its
//     per-stream component detail, written by the orchestrator.
//
// The wrapper manages the connection (WAL mode, foreign keys, single
// writer) and applies schema migrations embedded in the binary. All
// tables are STRICT and timestamps are RFC 3339 TEXT.
//
// Migrations are forward-only. A field controller that needs its
// schema undone gets its database restored from backup; there are no
// rollback scripts to maintain or test.
//
//	db, err := database.Open(database.Config{Path: "data/termcore.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
