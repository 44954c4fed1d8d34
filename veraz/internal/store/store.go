// Package store is the data access layer for the discount-authenticity
// pipeline: six relations plus the migrations ledger, all mutations going
// through idempotent upsert/insert-or-ignore keyed by natural uniqueness
// constraints so overlapping cycles never need application-level locking.
package store

import "database/sql"

// Store wraps the veraz database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
