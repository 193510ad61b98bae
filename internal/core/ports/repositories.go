package ports

import (
	"context"
	"errors"

	"nusd-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store-level sentinels. Adapters wrap driver errors into these so services
// can branch with errors.Is regardless of the backend.
var (
	// ErrConcurrentModification signals a lost-update: the row changed between
	// read and write, or the database aborted the transaction to serialize it.
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicateEmail         = errors.New("duplicate email")
	ErrDuplicateAlias         = errors.New("duplicate alias")
	ErrDuplicateExternalRef   = errors.New("duplicate external reference")
	ErrDuplicateVaultAddress  = errors.New("duplicate vault address")
	// ErrPendingWithdrawalExists is raised by the one-pending-withdrawal-per-account index.
	ErrPendingWithdrawalExists = errors.New("pending withdrawal exists")
)

// UserRepository defines persistence operations for login identities.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AccountRepository is the account store.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByAlias(ctx context.Context, alias string) (*domain.Account, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error)
	GetBalance(ctx context.Context, id uuid.UUID) (int64, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	// AdjustBalance adds delta to the balance if the row is still at version and
	// returns the new balance. A version mismatch yields ErrConcurrentModification.
	AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, version int64) (int64, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.AccountStatus) error
}

// LedgerRepository is the ledger store.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error)
	FindPendingWithdrawal(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.LedgerEntry, error)
	FindByExternalRef(ctx context.Context, ref string) (*domain.LedgerEntry, error)
	// UpdateStatus persists a pending entry's transition (status, external ref,
	// details, settled_at). Returns domain.ErrInvalidTransition if the stored row
	// is no longer pending.
	UpdateStatus(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	List(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
}

// EntryListParams holds filter + pagination for listing ledger entries.
// A nil AccountID lists across all accounts (operator queues).
type EntryListParams struct {
	AccountID *uuid.UUID
	Kind      *domain.EntryKind
	Status    *domain.EntryStatus
	Page      int
	PageSize  int
}

// VaultRepository is the vault store.
type VaultRepository interface {
	Create(ctx context.Context, vault *domain.Vault) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vault, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Vault, error)
	FindByAddress(ctx context.Context, address string) (*domain.Vault, error)
	List(ctx context.Context) ([]domain.Vault, error)
	AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, version int64) (int64, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
