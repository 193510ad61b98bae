package postgres

import (
	"context"
	"errors"
	"fmt"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const vaultColumns = `id, address, key_enc, department, balance, version, created_at, updated_at`

// VaultRepo implements ports.VaultRepository.
type VaultRepo struct {
	pool Pool
}

// NewVaultRepo creates a new VaultRepo.
func NewVaultRepo(pool Pool) *VaultRepo {
	return &VaultRepo{pool: pool}
}

// Create registers a vault.
func (r *VaultRepo) Create(ctx context.Context, v *domain.Vault) error {
	if v.Version == 0 {
		v.Version = 1
	}
	query := `INSERT INTO vaults (` + vaultColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.Address, v.KeyEnc, v.Department,
		v.Balance, v.Version, v.CreatedAt, v.UpdatedAt,
	)
	return mapError("insert vault", err)
}

// GetByID fetches a vault by UUID.
func (r *VaultRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1`
	return scanVault(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a vault with pessimistic locking.
// This MUST be called within a transaction.
func (r *VaultRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1 FOR UPDATE`
	v, err := scanVault(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError("lock vault", err)
	}
	return v, nil
}

// FindByAddress matches a base58 address exactly.
func (r *VaultRepo) FindByAddress(ctx context.Context, address string) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE address = $1`
	return scanVault(r.pool.QueryRow(ctx, query, address))
}

// List returns all vaults in registration order.
func (r *VaultRepo) List(ctx context.Context) ([]domain.Vault, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+vaultColumns+` FROM vaults ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	defer rows.Close()

	var vaults []domain.Vault
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vault rows: %w", err)
	}
	return vaults, nil
}

// AdjustBalance applies delta if the row is still at version.
func (r *VaultRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, version int64) (int64, error) {
	query := `UPDATE vaults SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
		RETURNING balance`

	var balance int64
	err := tx.QueryRow(ctx, query, delta, id, version).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("adjust vault %s: %w", id, ports.ErrConcurrentModification)
		}
		return 0, mapError("adjust vault balance", err)
	}
	return balance, nil
}

func scanVault(row pgx.Row) (*domain.Vault, error) {
	v := &domain.Vault{}
	err := row.Scan(
		&v.ID, &v.Address, &v.KeyEnc, &v.Department,
		&v.Balance, &v.Version, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan vault: %w", err)
	}
	return v, nil
}
