// Package pgstore implements account.Store on PostgreSQL using pgx.
//
// Profiles live in the account_security table created by the embedded
// goose migrations (see Migrate). Save is a single
// UPDATE ... WHERE version = $n statement, so the row's version column is
// the compare-and-set guard.
//
// A pgx.Tx attached with WithTx is used instead of the pool, letting
// callers fold a profile write into a larger transaction.
package pgstore
