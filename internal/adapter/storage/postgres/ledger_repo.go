package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, account_id, kind, status, amount, external_ref, counterparty_account_id, details, created_at, settled_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create inserts a new entry within a database transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	details, err := e.DetailsJSON()
	if err != nil {
		return fmt.Errorf("encode entry details: %w", err)
	}

	query := `INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, query,
		e.ID, e.AccountID, e.Kind, e.Status, e.Amount,
		e.ExternalRef, e.CounterpartyAccountID, details,
		e.CreatedAt, e.SettledAt,
	)
	return mapError("insert ledger entry", err)
}

// GetByID fetches an entry by UUID.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches an entry by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *LedgerRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1 FOR UPDATE`
	e, err := scanEntry(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError("lock ledger entry", err)
	}
	return e, nil
}

// FindPendingWithdrawal returns the account's open withdrawal, if any. The
// caller already holds the account lock; the partial unique index backs it up.
func (r *LedgerRepo) FindPendingWithdrawal(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = $1 AND kind = $2 AND status = $3`
	return scanEntry(tx.QueryRow(ctx, query, accountID, domain.EntryKindWithdrawal, domain.EntryStatusPending))
}

// FindByExternalRef returns the live entry recorded for a chain reference.
// Cancelled entries are ignored so a rejected claim can be resubmitted.
func (r *LedgerRepo) FindByExternalRef(ctx context.Context, ref string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE external_ref = $1 AND status <> $2`
	return scanEntry(r.pool.QueryRow(ctx, query, ref, domain.EntryStatusCancelled))
}

// UpdateStatus persists the status, reference and details of a PENDING entry.
// The WHERE clause makes a second settlement of the same entry a no-op that
// reports ErrInvalidTransition.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	details, err := e.DetailsJSON()
	if err != nil {
		return fmt.Errorf("encode entry details: %w", err)
	}

	query := `UPDATE ledger_entries
		SET status = $1, external_ref = $2, details = $3, settled_at = $4
		WHERE id = $5 AND status = $6`

	tag, err := tx.Exec(ctx, query, e.Status, e.ExternalRef, details, e.SettledAt, e.ID, domain.EntryStatusPending)
	if err != nil {
		return mapError("update ledger entry", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrInvalidTransition)
	}
	return nil
}

// List fetches entries with filtering and pagination, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.AccountID != nil {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIdx))
		args = append(args, *params.AccountID)
		argIdx++
	}
	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total
	var total int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, entryColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, params.PageSize)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, total, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	var details []byte
	err := row.Scan(
		&e.ID, &e.AccountID, &e.Kind, &e.Status, &e.Amount,
		&e.ExternalRef, &e.CounterpartyAccountID, &details,
		&e.CreatedAt, &e.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	if err := e.SetDetailsJSON(details); err != nil {
		return nil, fmt.Errorf("decode details of entry %s: %w", e.ID, err)
	}
	return e, nil
}
