// Package database provides the SQLite connection behind the catalog's
// default document store.
//
// The catalog keeps plants, devices, users and settings as JSON documents
// keyed by (collection, business id). This package owns the connection,
// its pragmas and the embedded schema migrations; the document access
// itself lives in the catalog package.
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements. The database file is chmod
// 0600 after opening.
package database
