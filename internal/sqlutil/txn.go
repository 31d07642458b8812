package sqlutil

import (
	"context"
	"database/sql"
)

// Run executes fn inside a *sql.Tx. If fn returns an error the transaction
// rolls back, otherwise it commits. newQueries binds a query struct to the
// transaction so repository code stays oblivious to transaction boundaries.
func Run[T any](
	ctx context.Context,
	db *sql.DB,
	newQueries func(*sql.Tx) *T,
	fn func(q *T) error,
) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	q := newQueries(tx)
	if err := fn(q); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
