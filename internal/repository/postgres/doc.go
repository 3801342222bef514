// Package postgres implements the engine's data access on PostgreSQL via
// database/sql and lib/pq. Status transitions are conditional updates checked
// with RowsAffected; there is no row locking anywhere.
package postgres
