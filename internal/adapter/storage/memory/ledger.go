package memory

import (
	"context"
	"fmt"
	"sort"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct{ s *Store }

// NewLedgerRepo creates a LedgerRepo over s.
func NewLedgerRepo(s *Store) *LedgerRepo { return &LedgerRepo{s: s} }

func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	mt, err := r.s.tx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e.ExternalRef != nil && e.Status != domain.EntryStatusCancelled && r.liveRefLocked(*e.ExternalRef, e.ID) {
		return fmt.Errorf("insert ledger entry: %w", ports.ErrDuplicateExternalRef)
	}
	if e.Kind == domain.EntryKindWithdrawal && e.Status == domain.EntryStatusPending && r.pendingWithdrawalLocked(e.AccountID) != nil {
		return fmt.Errorf("insert ledger entry: %w", ports.ErrPendingWithdrawalExists)
	}

	remember(mt, r.s.entries, e.ID)
	r.s.entries[e.ID] = cloneEntry(*e)
	return nil
}

func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.entries[id]
	if !ok {
		return nil, nil
	}
	c := cloneEntry(e)
	return &c, nil
}

func (r *LedgerRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	if _, err := r.s.tx(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *LedgerRepo) FindPendingWithdrawal(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.LedgerEntry, error) {
	if _, err := r.s.tx(tx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.pendingWithdrawalLocked(accountID), nil
}

// FindByExternalRef ignores cancelled entries so a rejected claim can be resubmitted.
func (r *LedgerRepo) FindByExternalRef(ctx context.Context, ref string) (*domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.entries {
		if e.ExternalRef != nil && *e.ExternalRef == ref && e.Status != domain.EntryStatusCancelled {
			c := cloneEntry(e)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *LedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	mt, err := r.s.tx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.entries[e.ID]
	if !ok || stored.Status != domain.EntryStatusPending {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrInvalidTransition)
	}
	if e.ExternalRef != nil && e.Status != domain.EntryStatusCancelled && r.liveRefLocked(*e.ExternalRef, e.ID) {
		return fmt.Errorf("update ledger entry: %w", ports.ErrDuplicateExternalRef)
	}

	updated := cloneEntry(*e)
	stored.Status = updated.Status
	stored.ExternalRef = updated.ExternalRef
	stored.Transfer = updated.Transfer
	stored.Withdrawal = updated.Withdrawal
	stored.Deposit = updated.Deposit
	stored.SettledAt = updated.SettledAt

	remember(mt, r.s.entries, e.ID)
	r.s.entries[e.ID] = stored
	return nil
}

// List filters entries and pages them newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []domain.LedgerEntry
	for _, e := range r.s.entries {
		if params.AccountID != nil && e.AccountID != *params.AccountID {
			continue
		}
		if params.Kind != nil && e.Kind != *params.Kind {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		matched = append(matched, cloneEntry(e))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(matched) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// Callers hold mu.
func (r *LedgerRepo) pendingWithdrawalLocked(accountID uuid.UUID) *domain.LedgerEntry {
	for _, e := range r.s.entries {
		if e.AccountID == accountID && e.Kind == domain.EntryKindWithdrawal && e.Status == domain.EntryStatusPending {
			c := cloneEntry(e)
			return &c
		}
	}
	return nil
}

// Callers hold mu.
func (r *LedgerRepo) liveRefLocked(ref string, except uuid.UUID) bool {
	for _, e := range r.s.entries {
		if e.ID != except && e.ExternalRef != nil && *e.ExternalRef == ref && e.Status != domain.EntryStatusCancelled {
			return true
		}
	}
	return false
}

// cloneEntry copies e deeply enough that callers can mutate the result.
func cloneEntry(e domain.LedgerEntry) domain.LedgerEntry {
	if e.ExternalRef != nil {
		ref := *e.ExternalRef
		e.ExternalRef = &ref
	}
	if e.CounterpartyAccountID != nil {
		id := *e.CounterpartyAccountID
		e.CounterpartyAccountID = &id
	}
	if e.SettledAt != nil {
		at := *e.SettledAt
		e.SettledAt = &at
	}
	if e.Transfer != nil {
		t := *e.Transfer
		e.Transfer = &t
	}
	if e.Withdrawal != nil {
		w := *e.Withdrawal
		if w.VaultID != nil {
			id := *w.VaultID
			w.VaultID = &id
		}
		if w.DispatchedAt != nil {
			at := *w.DispatchedAt
			w.DispatchedAt = &at
		}
		e.Withdrawal = &w
	}
	if e.Deposit != nil {
		d := *e.Deposit
		e.Deposit = &d
	}
	return e
}
