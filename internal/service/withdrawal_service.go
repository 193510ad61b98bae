package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/metrics"
	"nusd-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultWithdrawalNetwork is recorded when the caller does not name one.
const DefaultWithdrawalNetwork = "TRC20"

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	vaultRepo   ports.VaultRepository
	relay       ports.BlockchainRelay
	encSvc      ports.EncryptionService
	transactor  ports.DBTransactor
	policy      Policy
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	vaultRepo ports.VaultRepository,
	relay ports.BlockchainRelay,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	policy Policy,
	m *metrics.Metrics,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		vaultRepo:   vaultRepo,
		relay:       relay,
		encSvc:      encSvc,
		transactor:  transactor,
		policy:      policy,
		metrics:     m,
		log:         log,
	}
}

// Request reserves req.Amount from the account and records a pending withdrawal.
func (s *WithdrawalServiceImpl) Request(ctx context.Context, req ports.WithdrawalRequest) (*domain.LedgerEntry, error) {
	entry, err := s.request(ctx, req)
	s.metrics.RecordSettlement("withdrawal_request", err)
	return entry, err
}

func (s *WithdrawalServiceImpl) request(ctx context.Context, req ports.WithdrawalRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Amount < s.policy.MinWithdrawal {
		return nil, apperror.ErrAmountBelowMinimum(domain.FormatAmount(s.policy.MinWithdrawal))
	}
	destination := strings.TrimSpace(req.DestinationAddress)
	if !domain.ValidateTronAddress(destination) {
		return nil, apperror.ErrInvalidAddress()
	}
	network := req.Network
	if network == "" {
		network = DefaultWithdrawalNetwork
	}

	var entry *domain.LedgerEntry
	err := retryOnConflict(ctx, s.policy.MaxRetries, s.log, "withdrawal_request", func() error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, req.AccountID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if acc == nil {
			return apperror.ErrNotFound("account")
		}
		if !acc.IsActive() {
			return apperror.ErrAccountSuspended()
		}

		// Business rule: one open withdrawal per account. Checked before the
		// balance, which an open withdrawal has already reduced.
		pending, err := s.ledgerRepo.FindPendingWithdrawal(ctx, dbTx, acc.ID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("find pending withdrawal: %w", err))
		}
		if pending != nil {
			return apperror.ErrAlreadyPending(pending.ID.String())
		}

		// Business rule: sufficient funds
		if !acc.CanDebit(req.Amount) {
			return apperror.ErrInsufficientBalance()
		}

		if _, err := s.accountRepo.AdjustBalance(ctx, dbTx, acc.ID, -req.Amount, acc.Version); err != nil {
			return apperror.InternalError(fmt.Errorf("reserve funds: %w", err))
		}

		e := &domain.LedgerEntry{
			ID:        uuid.New(),
			AccountID: acc.ID,
			Kind:      domain.EntryKindWithdrawal,
			Status:    domain.EntryStatusPending,
			Amount:    req.Amount,
			Withdrawal: &domain.WithdrawalDetails{
				DestinationAddress: destination,
				Network:            network,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := s.ledgerRepo.Create(ctx, dbTx, e); err != nil {
			if errors.Is(err, ports.ErrPendingWithdrawalExists) {
				// Lost the race against the unique index; the retry will see the row.
				return fmt.Errorf("%w: %v", ports.ErrConcurrentModification, err)
			}
			return apperror.InternalError(fmt.Errorf("create withdrawal entry: %w", err))
		}

		if err := dbTx.Commit(ctx); err != nil {
			return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("account_id", req.AccountID.String()).
		Int64("amount", req.Amount).
		Msg("withdrawal reserved")

	return entry, nil
}

// Cancel releases a pending withdrawal back to its owning account.
func (s *WithdrawalServiceImpl) Cancel(ctx context.Context, accountID, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := s.cancel(ctx, accountID, entryID)
	s.metrics.RecordSettlement("withdrawal_cancel", err)
	return entry, err
}

func (s *WithdrawalServiceImpl) cancel(ctx context.Context, accountID, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := retryOnConflict(ctx, s.policy.MaxRetries, s.log, "withdrawal_cancel", func() error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		// Lock order: entry, then account.
		e, err := s.ledgerRepo.GetByIDForUpdate(ctx, dbTx, entryID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock entry: %w", err))
		}
		if e == nil || e.Kind != domain.EntryKindWithdrawal {
			return apperror.ErrNotFound("withdrawal")
		}
		if e.AccountID != accountID {
			return apperror.ErrForbidden()
		}
		if !e.IsPending() {
			return apperror.ErrEntryNotPending()
		}
		if e.Withdrawal.IsDispatched() {
			return apperror.ErrWithdrawalDispatched()
		}

		acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, e.AccountID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if acc == nil {
			return apperror.ErrNotFound("account")
		}

		if _, err := s.accountRepo.AdjustBalance(ctx, dbTx, acc.ID, e.Amount, acc.Version); err != nil {
			return apperror.InternalError(fmt.Errorf("release funds: %w", err))
		}

		if err := e.Transition(domain.EntryStatusCancelled, time.Now().UTC()); err != nil {
			return apperror.ErrEntryNotPending()
		}
		if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, e); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return apperror.ErrEntryNotPending()
			}
			return apperror.InternalError(fmt.Errorf("cancel entry: %w", err))
		}

		if err := dbTx.Commit(ctx); err != nil {
			return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("account_id", accountID.String()).
		Int64("amount", entry.Amount).
		Msg("withdrawal cancelled")

	return entry, nil
}

// Settle pays out a pending withdrawal from vaultID through the relay.
//
// No row lock is held while the relay call is in flight. The vault is debited
// and the entry is marked dispatched in its own committed transaction first;
// from then on Cancel is refused. The relay is called with the entry id as its
// idempotency key. A success completes the entry and a refusal undoes the
// dispatch. An unknown outcome leaves the entry pending and dispatched, and a
// later Settle with the same vault resends under the same key without
// debiting the vault again.
func (s *WithdrawalServiceImpl) Settle(ctx context.Context, entryID, vaultID uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := s.settle(ctx, entryID, vaultID)
	s.metrics.RecordSettlement("withdrawal_settle", err)
	return entry, err
}

// payoutDispatch is a withdrawal that has been marked dispatched and is ready
// for the relay.
type payoutDispatch struct {
	entry       *domain.LedgerEntry
	fromAddress string
	privateKey  string
}

func (s *WithdrawalServiceImpl) settle(ctx context.Context, entryID, vaultID uuid.UUID) (*domain.LedgerEntry, error) {
	d, err := s.dispatch(ctx, entryID, vaultID)
	if err != nil {
		return nil, err
	}
	entry := d.entry

	asset := s.policy.Asset
	if asset == "" {
		asset = domain.NativeAsset
	}
	txID, err := s.relay.SendAsset(ctx, ports.PayoutRequest{
		FromAddress:    d.fromAddress,
		PrivateKey:     d.privateKey,
		ToAddress:      entry.Withdrawal.DestinationAddress,
		Amount:         entry.Amount,
		Asset:          asset,
		IdempotencyKey: entry.ID.String(),
	})
	if err != nil {
		if errors.Is(err, ports.ErrRelayRejected) {
			if undoErr := s.undoDispatch(ctx, entry.ID, vaultID); undoErr != nil {
				s.log.Error().
					Err(undoErr).
					Str("entry_id", entry.ID.String()).
					Str("vault_id", vaultID.String()).
					Msg("rejected payout could not be undone, withdrawal left dispatched")
			}
			s.log.Warn().
				Err(err).
				Str("entry_id", entry.ID.String()).
				Str("vault_id", vaultID.String()).
				Msg("payout rejected by relay")
			return nil, apperror.ErrRelay("failed", err)
		}
		s.log.Error().
			Err(err).
			Str("entry_id", entry.ID.String()).
			Str("vault_id", vaultID.String()).
			Msg("payout outcome unknown, withdrawal left dispatched")
		return nil, apperror.ErrRelay("unknown", err)
	}

	settled, err := s.complete(ctx, entry.ID, txID)
	if err != nil {
		s.logUnrecordedPayout(entry, txID, err)
		return nil, err
	}

	s.log.Info().
		Str("entry_id", settled.ID.String()).
		Str("vault_id", vaultID.String()).
		Str("tx_id", txID).
		Int64("amount", settled.Amount).
		Msg("withdrawal settled")

	return settled, nil
}

// dispatch debits the vault and marks the entry dispatched. An entry that is
// already dispatched from the same vault is returned as is, so the payout can
// be resent.
func (s *WithdrawalServiceImpl) dispatch(ctx context.Context, entryID, vaultID uuid.UUID) (*payoutDispatch, error) {
	var d *payoutDispatch
	err := retryOnConflict(ctx, s.policy.MaxRetries, s.log, "withdrawal_dispatch", func() error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		// Lock order: entry, then vault.
		entry, err := s.ledgerRepo.GetByIDForUpdate(ctx, dbTx, entryID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock entry: %w", err))
		}
		if entry == nil || entry.Kind != domain.EntryKindWithdrawal {
			return apperror.ErrNotFound("withdrawal")
		}
		if !entry.IsPending() {
			return apperror.ErrEntryNotPending()
		}
		if entry.Withdrawal == nil {
			return apperror.InternalError(fmt.Errorf("withdrawal %s has no destination", entry.ID))
		}

		resend := entry.Withdrawal.IsDispatched()
		if resend && (entry.Withdrawal.VaultID == nil || *entry.Withdrawal.VaultID != vaultID) {
			return apperror.ErrDispatchVaultMismatch()
		}

		vault, err := s.vaultRepo.GetByIDForUpdate(ctx, dbTx, vaultID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock vault: %w", err))
		}
		if vault == nil {
			return apperror.ErrNotFound("vault")
		}
		if !resend && !vault.CanFund(entry.Amount) {
			return apperror.ErrInsufficientVaultBalance()
		}
		if !vault.HasKey() {
			return apperror.ErrVaultKeyMissing()
		}

		privateKey, err := s.encSvc.Decrypt(*vault.KeyEnc)
		if err != nil {
			return apperror.ErrEncryptionFailure(fmt.Errorf("decrypt vault key: %w", err))
		}

		if !resend {
			if _, err := s.vaultRepo.AdjustBalance(ctx, dbTx, vault.ID, -entry.Amount, vault.Version); err != nil {
				return apperror.InternalError(fmt.Errorf("debit vault: %w", err))
			}
			now := time.Now().UTC()
			entry.Withdrawal.VaultID = &vault.ID
			entry.Withdrawal.DispatchedAt = &now
			if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, entry); err != nil {
				if errors.Is(err, domain.ErrInvalidTransition) {
					return apperror.ErrEntryNotPending()
				}
				return apperror.InternalError(fmt.Errorf("mark entry dispatched: %w", err))
			}
			if err := dbTx.Commit(ctx); err != nil {
				return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
			}
		} else {
			s.log.Warn().
				Str("entry_id", entry.ID.String()).
				Str("vault_id", vault.ID.String()).
				Msg("resending dispatched payout")
		}

		d = &payoutDispatch{entry: entry, fromAddress: vault.Address, privateKey: privateKey}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// undoDispatch credits the vault back and clears the dispatch marker after
// the relay refused the payout. It is a no-op when the entry is no longer
// dispatched from vaultID.
func (s *WithdrawalServiceImpl) undoDispatch(ctx context.Context, entryID, vaultID uuid.UUID) error {
	return retryOnConflict(ctx, s.policy.MaxRetries, s.log, "withdrawal_undo_dispatch", func() error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		entry, err := s.ledgerRepo.GetByIDForUpdate(ctx, dbTx, entryID)
		if err != nil {
			return fmt.Errorf("lock entry: %w", err)
		}
		if entry == nil || !entry.IsPending() || !entry.Withdrawal.IsDispatched() ||
			entry.Withdrawal.VaultID == nil || *entry.Withdrawal.VaultID != vaultID {
			return nil
		}

		vault, err := s.vaultRepo.GetByIDForUpdate(ctx, dbTx, vaultID)
		if err != nil {
			return fmt.Errorf("lock vault: %w", err)
		}
		if vault == nil {
			return fmt.Errorf("vault %s not found", vaultID)
		}
		if _, err := s.vaultRepo.AdjustBalance(ctx, dbTx, vault.ID, entry.Amount, vault.Version); err != nil {
			return fmt.Errorf("credit vault: %w", err)
		}

		entry.Withdrawal.VaultID = nil
		entry.Withdrawal.DispatchedAt = nil
		if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, entry); err != nil {
			return fmt.Errorf("clear dispatch: %w", err)
		}
		return dbTx.Commit(ctx)
	})
}

// complete records the broadcast transaction on a dispatched entry. An entry
// already completed with the same reference is returned unchanged.
func (s *WithdrawalServiceImpl) complete(ctx context.Context, entryID uuid.UUID, txID string) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := retryOnConflict(ctx, s.policy.MaxRetries, s.log, "withdrawal_complete", func() error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		e, err := s.ledgerRepo.GetByIDForUpdate(ctx, dbTx, entryID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock entry: %w", err))
		}
		if e == nil {
			return apperror.ErrNotFound("withdrawal")
		}
		if e.Status == domain.EntryStatusCompleted && e.ExternalRef != nil && *e.ExternalRef == txID {
			entry = e
			return nil
		}

		e.ExternalRef = &txID
		if err := e.Transition(domain.EntryStatusCompleted, time.Now().UTC()); err != nil {
			return apperror.ErrEntryNotPending()
		}
		if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, e); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return apperror.ErrEntryNotPending()
			}
			return apperror.InternalError(fmt.Errorf("complete entry: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// logUnrecordedPayout flags a payout that reached the chain but could not be
// recorded. The entry stays pending and dispatched; settling it again from
// the same vault resends under the same idempotency key.
func (s *WithdrawalServiceImpl) logUnrecordedPayout(entry *domain.LedgerEntry, txID string, err error) {
	s.log.Error().
		Err(err).
		Str("entry_id", entry.ID.String()).
		Str("tx_id", txID).
		Msg("payout dispatched but settlement not recorded")
}

// ListPending returns the operator queue of open withdrawals.
func (s *WithdrawalServiceImpl) ListPending(ctx context.Context, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	return listPending(ctx, s.ledgerRepo, domain.EntryKindWithdrawal, page, pageSize)
}

func listPending(ctx context.Context, repo ports.LedgerRepository, kind domain.EntryKind, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	status := domain.EntryStatusPending
	page, pageSize = normalizePage(page, pageSize)
	entries, total, err := repo.List(ctx, ports.EntryListParams{
		Kind:     &kind,
		Status:   &status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}
