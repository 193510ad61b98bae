package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxAliasAttempts = 5
	defaultPageSize  = 20
	maxPageSize      = 100
)

// accountService implements ports.AccountService.
type accountService struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) ports.AccountService {
	return &accountService{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		transactor:  transactor,
		log:         log,
	}
}

// GetAccount returns the account with its current balance.
func (s *accountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	acc, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if acc == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return acc, nil
}

// GetOwnedAccount hides accounts the caller does not own behind NotFound.
func (s *accountService) GetOwnedAccount(ctx context.Context, ownerID, accountID uuid.UUID) (*domain.Account, error) {
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.OwnerID != ownerID {
		return nil, apperror.ErrNotFound("account")
	}
	return acc, nil
}

func (s *accountService) ListAccounts(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	accounts, err := s.accountRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return accounts, nil
}

// CreateBusinessAccount opens a merchant sub-account with its own alias.
func (s *accountService) CreateBusinessAccount(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("account name is required")
	}

	var acc *domain.Account
	err := withFreshAlias(func(alias string) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		now := time.Now().UTC()
		a := &domain.Account{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			Kind:      domain.AccountKindBusiness,
			Name:      name,
			Alias:     alias,
			Status:    domain.AccountStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.accountRepo.Create(ctx, dbTx, a); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		if err := dbTx.Commit(ctx); err != nil {
			return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		acc = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", acc.ID.String()).Str("alias", acc.Alias).Msg("business account created")
	return acc, nil
}

// ListEntries returns a page of ledger history.
func (s *accountService) ListEntries(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	entries, total, err := s.ledgerRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}

// SetStatus suspends or reactivates an account.
func (s *accountService) SetStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) (*domain.Account, error) {
	if !domain.ValidAccountStatus(status) {
		return nil, apperror.Validation("status must be ACTIVE or SUSPENDED")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if acc == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if err := s.accountRepo.UpdateStatus(ctx, dbTx, id, status); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update status: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	acc.Status = status
	s.log.Info().Str("account_id", id.String()).Str("status", string(status)).Msg("account status changed")
	return acc, nil
}

// withFreshAlias calls create with newly generated aliases until one does not
// collide with an existing account.
func withFreshAlias(create func(alias string) error) error {
	var err error
	for i := 0; i < maxAliasAttempts; i++ {
		alias, genErr := domain.GenerateAlias()
		if genErr != nil {
			return apperror.InternalError(genErr)
		}
		err = create(alias)
		if !errors.Is(err, ports.ErrDuplicateAlias) {
			var appErr *apperror.AppError
			if err != nil && !errors.As(err, &appErr) {
				return apperror.InternalError(err)
			}
			return err
		}
	}
	return apperror.InternalError(fmt.Errorf("allocate alias: %w", err))
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
