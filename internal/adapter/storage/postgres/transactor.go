package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a new database transaction. Serialization failures surfacing
// at commit are reported as ports.ErrConcurrentModification.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, mapError("begin tx", err)
	}
	return &mappedTx{Tx: tx}, nil
}

type mappedTx struct {
	pgx.Tx
}

func (t *mappedTx) Commit(ctx context.Context) error {
	return mapError("commit", t.Tx.Commit(ctx))
}
