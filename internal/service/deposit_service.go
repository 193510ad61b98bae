package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/metrics"
	"nusd-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// DepositServiceImpl implements ports.DepositService.
type DepositServiceImpl struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	vaultRepo   ports.VaultRepository
	explorer    ports.BlockchainExplorer
	transactor  ports.DBTransactor
	policy      Policy
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewDepositService creates a new DepositServiceImpl.
func NewDepositService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	vaultRepo ports.VaultRepository,
	explorer ports.BlockchainExplorer,
	transactor ports.DBTransactor,
	policy Policy,
	m *metrics.Metrics,
	log zerolog.Logger,
) *DepositServiceImpl {
	return &DepositServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		vaultRepo:   vaultRepo,
		explorer:    explorer,
		transactor:  transactor,
		policy:      policy,
		metrics:     m,
		log:         log,
	}
}

// NormalizeTxID lower-cases a transaction hash and checks it is 32 bytes of hex.
func NormalizeTxID(txID string) (string, bool) {
	txID = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(txID), "0x"))
	if len(txID) != 64 {
		return "", false
	}
	if _, err := hex.DecodeString(txID); err != nil {
		return "", false
	}
	return txID, true
}

// Verify reports what the chain says about txID. It never writes.
func (s *DepositServiceImpl) Verify(ctx context.Context, txID string) (*ports.DepositVerification, error) {
	ref, ok := NormalizeTxID(txID)
	if !ok {
		return nil, apperror.Validation("invalid transaction reference")
	}

	chainTx, err := s.explorer.GetTransaction(ctx, ref)
	if err != nil {
		if errors.Is(err, ports.ErrUnsupportedTransaction) {
			return nil, apperror.ErrUnsupportedAsset()
		}
		return nil, apperror.ErrExplorerUnavailable(err)
	}
	if chainTx == nil {
		return nil, apperror.ErrNotFound("transaction")
	}

	report := &ports.DepositVerification{Transaction: *chainTx}

	vault, err := s.vaultRepo.FindByAddress(ctx, chainTx.To)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("match vault: %w", err))
	}
	if vault != nil {
		report.VaultMatch = true
		report.Vault = vault
	}

	existing, err := s.ledgerRepo.FindByExternalRef(ctx, ref)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find entry by external ref: %w", err))
	}
	if existing != nil {
		report.RecordedEntryID = &existing.ID
	}

	return report, nil
}

// Submit records a pending deposit claim for accountID. Nothing is credited
// until an operator approves it.
func (s *DepositServiceImpl) Submit(ctx context.Context, accountID uuid.UUID, txID string) (*domain.LedgerEntry, error) {
	entry, err := s.submit(ctx, accountID, txID)
	s.metrics.RecordSettlement("deposit_submit", err)
	return entry, err
}

func (s *DepositServiceImpl) submit(ctx context.Context, accountID uuid.UUID, txID string) (*domain.LedgerEntry, error) {
	report, err := s.Verify(ctx, txID)
	if err != nil {
		return nil, err
	}
	chainTx := report.Transaction

	if !report.VaultMatch {
		return nil, apperror.ErrNoVaultMatch()
	}
	if !chainTx.Confirmed {
		return nil, apperror.ErrDepositUnconfirmed()
	}
	if s.policy.Asset != "" && chainTx.Asset != s.policy.Asset {
		return nil, apperror.ErrUnsupportedAsset()
	}
	if chainTx.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if chainTx.Amount < s.policy.MinDeposit {
		return nil, apperror.ErrAmountBelowMinimum(domain.FormatAmount(s.policy.MinDeposit))
	}
	if report.RecordedEntryID != nil {
		return nil, apperror.ErrDuplicateExternalReference()
	}

	acc, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find account: %w", err))
	}
	if acc == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if !acc.IsActive() {
		return nil, apperror.ErrAccountSuspended()
	}

	ref, _ := NormalizeTxID(txID)
	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   acc.ID,
		Kind:        domain.EntryKindDeposit,
		Status:      domain.EntryStatusPending,
		Amount:      chainTx.Amount,
		ExternalRef: &ref,
		Deposit: &domain.DepositDetails{
			VaultID:     report.Vault.ID,
			FromAddress: chainTx.From,
			ToAddress:   chainTx.To,
			Asset:       chainTx.Asset,
			BlockNumber: chainTx.BlockHeight,
		},
		CreatedAt: time.Now().UTC(),
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		if errors.Is(err, ports.ErrDuplicateExternalRef) {
			return nil, apperror.ErrDuplicateExternalReference()
		}
		return nil, apperror.InternalError(fmt.Errorf("create deposit entry: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("account_id", acc.ID.String()).
		Str("tx_id", ref).
		Int64("amount", entry.Amount).
		Msg("deposit claim recorded")

	return entry, nil
}

// Approve credits a pending deposit to its account and the vault mirror.
func (s *DepositServiceImpl) Approve(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := s.approve(ctx, entryID)
	s.metrics.RecordSettlement("deposit_approve", err)
	return entry, err
}

func (s *DepositServiceImpl) approve(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := retryOnConflict(ctx, s.policy.MaxRetries, s.log, "deposit_approve", func() error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		// Lock order: entry, account, vault.
		e, err := s.lockPendingDeposit(ctx, dbTx, entryID)
		if err != nil {
			return err
		}

		acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, e.AccountID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if acc == nil {
			return apperror.ErrNotFound("account")
		}
		if _, err := s.accountRepo.AdjustBalance(ctx, dbTx, acc.ID, e.Amount, acc.Version); err != nil {
			return apperror.InternalError(fmt.Errorf("credit account: %w", err))
		}

		if e.Deposit != nil {
			vault, err := s.vaultRepo.GetByIDForUpdate(ctx, dbTx, e.Deposit.VaultID)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("lock vault: %w", err))
			}
			if vault != nil {
				if _, err := s.vaultRepo.AdjustBalance(ctx, dbTx, vault.ID, e.Amount, vault.Version); err != nil {
					return apperror.InternalError(fmt.Errorf("credit vault: %w", err))
				}
			}
		}

		if err := s.finish(ctx, dbTx, e, domain.EntryStatusCompleted); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("account_id", entry.AccountID.String()).
		Int64("amount", entry.Amount).
		Msg("deposit credited")

	return entry, nil
}

// Reject cancels a pending deposit claim without touching any balance.
func (s *DepositServiceImpl) Reject(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := s.reject(ctx, entryID)
	s.metrics.RecordSettlement("deposit_reject", err)
	return entry, err
}

func (s *DepositServiceImpl) reject(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.lockPendingDeposit(ctx, dbTx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx, dbTx, entry, domain.EntryStatusCancelled); err != nil {
		return nil, err
	}

	s.log.Info().Str("entry_id", entry.ID.String()).Msg("deposit claim rejected")
	return entry, nil
}

// ListPending returns the operator queue of deposit claims.
func (s *DepositServiceImpl) ListPending(ctx context.Context, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	return listPending(ctx, s.ledgerRepo, domain.EntryKindDeposit, page, pageSize)
}

func (s *DepositServiceImpl) lockPendingDeposit(ctx context.Context, dbTx pgx.Tx, entryID uuid.UUID) (*domain.LedgerEntry, error) {
	e, err := s.ledgerRepo.GetByIDForUpdate(ctx, dbTx, entryID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock entry: %w", err))
	}
	if e == nil || e.Kind != domain.EntryKindDeposit {
		return nil, apperror.ErrNotFound("deposit")
	}
	if !e.IsPending() {
		return nil, apperror.ErrEntryNotPending()
	}
	return e, nil
}

// finish transitions e, persists it and commits.
func (s *DepositServiceImpl) finish(ctx context.Context, dbTx pgx.Tx, e *domain.LedgerEntry, to domain.EntryStatus) error {
	if err := e.Transition(to, time.Now().UTC()); err != nil {
		return apperror.ErrEntryNotPending()
	}
	if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, e); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return apperror.ErrEntryNotPending()
		}
		return apperror.InternalError(fmt.Errorf("update entry: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}
