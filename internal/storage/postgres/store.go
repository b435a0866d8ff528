// Package postgres persists the booking domain in PostgreSQL through sqlx.
package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	coredatabase "github.com/m3rciful/fitbot/core/database"
	"github.com/m3rciful/fitbot/internal/booking"
	"github.com/m3rciful/fitbot/internal/storage"
)

// Store implements storage.Backend. Calls made on Store run in autocommit mode;
// WithinTx hands out a view bound to one transaction.
type Store struct {
	conn
	db *sqlx.DB
}

var _ storage.Backend = (*Store)(nil)

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{conn: conn{q: db}, db: db}
}

// conn runs queries on either the pool or a transaction.
type conn struct {
	q    sqlx.ExtContext
	inTx bool
}

// WithinTx runs fn in one transaction; any error rolls back every statement.
func (s *Store) WithinTx(ctx context.Context, fn func(booking.Tx) error) error {
	return coredatabase.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&conn{q: tx, inTx: true})
	})
}

// LockUser takes a transaction scoped advisory lock on the user id, so two
// concurrent reservations of one user cannot both pass the quota check.
// Outside a transaction it does nothing.
func (c *conn) LockUser(ctx context.Context, userID int64) error {
	if !c.inTx {
		return nil
	}
	_, err := c.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userID)
	return mapError("lock user", err)
}
