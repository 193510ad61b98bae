package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// VaultRepo implements ports.VaultRepository.
type VaultRepo struct{ s *Store }

// NewVaultRepo creates a VaultRepo over s.
func NewVaultRepo(s *Store) *VaultRepo { return &VaultRepo{s: s} }

// Create registers a vault outside any transaction; rollbacks never undo it.
func (r *VaultRepo) Create(ctx context.Context, v *domain.Vault) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.vaults {
		if existing.Address == v.Address {
			return fmt.Errorf("insert vault: %w", ports.ErrDuplicateVaultAddress)
		}
	}
	if v.Version == 0 {
		v.Version = 1
	}
	r.s.vaults[v.ID] = *v
	return nil
}

func (r *VaultRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vault, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vaults[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *VaultRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Vault, error) {
	if _, err := r.s.tx(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *VaultRepo) FindByAddress(ctx context.Context, address string) (*domain.Vault, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, v := range r.s.vaults {
		if v.Address == address {
			return &v, nil
		}
	}
	return nil, nil
}

func (r *VaultRepo) List(ctx context.Context) ([]domain.Vault, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Vault, 0, len(r.s.vaults))
	for _, v := range r.s.vaults {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *VaultRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, version int64) (int64, error) {
	mt, err := r.s.tx(tx)
	if err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.vaults[id]
	if !ok || v.Version != version {
		return 0, fmt.Errorf("adjust vault %s: %w", id, ports.ErrConcurrentModification)
	}
	if v.Balance+delta < 0 {
		return 0, fmt.Errorf("adjust vault %s: %w: negative balance", id, ports.ErrConcurrentModification)
	}

	remember(mt, r.s.vaults, id)
	v.Balance += delta
	v.Version++
	v.UpdatedAt = time.Now().UTC()
	r.s.vaults[id] = v
	return v.Balance, nil
}
