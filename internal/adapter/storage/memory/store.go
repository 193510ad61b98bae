// Package memory is an in-process implementation of every store port. It is
// used by the memory storage driver and by service tests that need real
// transaction semantics without PostgreSQL.
//
// Transactions are serialized: Begin takes a store-wide lock that is held
// until Commit or Rollback, so a transaction never observes another one's
// partial writes. Writes made inside a transaction record an undo step;
// Rollback replays them in reverse. A transaction held across a network call
// stalls every other writer.
package memory

import (
	"context"
	"errors"
	"sync"

	"nusd-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds all tables.
type Store struct {
	txMu sync.Mutex   // held by the open transaction
	mu   sync.RWMutex // guards the maps below

	users       map[uuid.UUID]domain.User
	accounts    map[uuid.UUID]domain.Account
	entries     map[uuid.UUID]domain.LedgerEntry
	vaults      map[uuid.UUID]domain.Vault
	idempotency map[string]domain.IdempotencyLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]domain.User),
		accounts:    make(map[uuid.UUID]domain.Account),
		entries:     make(map[uuid.UUID]domain.LedgerEntry),
		vaults:      make(map[uuid.UUID]domain.Vault),
		idempotency: make(map[string]domain.IdempotencyLog),
	}
}

// Begin implements ports.DBTransactor. It blocks until the previous
// transaction finishes or ctx is done.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	acquired := make(chan struct{})
	go func() {
		s.txMu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return &memTx{store: s}, nil
	case <-ctx.Done():
		// Hand the lock back once the goroutine gets it.
		go func() {
			<-acquired
			s.txMu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// memTx satisfies pgx.Tx. Only Commit and Rollback are meaningful; the
// embedded interface is nil and the repositories never call through it.
type memTx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()

	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

// tx checks that tx is an open transaction of this store.
func (s *Store) tx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s || mt.done {
		return nil, errForeignTx
	}
	return mt, nil
}

// remember records how to restore m[k] to its current state. Callers hold mu.
func remember[K comparable, V any](t *memTx, m map[K]V, k K) {
	prev, existed := m[k]
	t.undo = append(t.undo, func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}
