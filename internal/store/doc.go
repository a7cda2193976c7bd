// Package store is the local transactional record store backing spots.
//
// Records are JSON documents kept in SQLite, one table per record type, each
// keyed by a declared key field and carrying named indexes over its other
// fields. The tables, key fields and indexes are created by versioned
// migrations embedded in the binary (see sql/) and recorded in a catalog that
// [Open] loads once the schema is up to date.
//
// All reads and writes happen inside transactions scoped to a declared set of
// tables:
//
//	err := engine.Update(ctx, []string{"playlists", "tracks"}, func(tx *store.Tx) error {
//		track, err := store.Tracks(engine).In(tx).Read(id)
//		...
//	})
//
// A transaction commits when its callback returns nil and rolls back otherwise.
// The connection pool holds a single SQLite connection and write transactions
// begin IMMEDIATE, so check-then-act sequences inside one callback are never
// interleaved with another writer. Callbacks must only touch the store through
// the [Tx] they are handed.
//
// Failures are reported as [*Error] values whose [Kind] is one of NotReady,
// NotFound, DuplicateKey, TransactionAborted or SchemaError.
package store
