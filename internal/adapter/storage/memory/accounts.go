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

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct{ s *Store }

// NewAccountRepo creates an AccountRepo over s.
func NewAccountRepo(s *Store) *AccountRepo { return &AccountRepo{s: s} }

func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	mt, err := r.s.tx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.accounts {
		if existing.Alias == a.Alias {
			return fmt.Errorf("insert account: %w", ports.ErrDuplicateAlias)
		}
	}
	if a.Version == 0 {
		a.Version = 1
	}
	remember(mt, r.s.accounts, a.ID)
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AccountRepo) GetByAlias(ctx context.Context, alias string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.Alias == alias {
			return &a, nil
		}
	}
	return nil, nil
}

// ListByOwner returns the personal account first, then business accounts by age.
func (r *AccountRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Account
	for _, a := range r.s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind > out[j].Kind
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *AccountRepo) GetBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account %s not found", id)
	}
	return a.Balance, nil
}

// GetByIDForUpdate reads inside tx. The open transaction already excludes
// every other writer.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	if _, err := r.s.tx(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *AccountRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64, version int64) (int64, error) {
	mt, err := r.s.tx(tx)
	if err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok || a.Version != version {
		return 0, fmt.Errorf("adjust account %s: %w", id, ports.ErrConcurrentModification)
	}
	if a.Balance+delta < 0 {
		return 0, fmt.Errorf("adjust account %s: %w: negative balance", id, ports.ErrConcurrentModification)
	}

	remember(mt, r.s.accounts, id)
	a.Balance += delta
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	r.s.accounts[id] = a
	return a.Balance, nil
}

func (r *AccountRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.AccountStatus) error {
	mt, err := r.s.tx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s not found", id)
	}
	remember(mt, r.s.accounts, id)
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	r.s.accounts[id] = a
	return nil
}
