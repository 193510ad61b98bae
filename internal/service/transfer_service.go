package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/metrics"
	"nusd-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	policy      Policy
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	policy Policy,
	m *metrics.Metrics,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		policy:      policy,
		metrics:     m,
		log:         log,
	}
}

// Transfer moves req.Amount from the sender to the account owning req.RecipientAlias.
// Both balance writes and both ledger entries land in one database transaction.
func (s *TransferServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	result, err := s.transfer(ctx, req)
	s.metrics.RecordSettlement("transfer", err)
	return result, err
}

func (s *TransferServiceImpl) transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	alias := domain.NormalizeAlias(req.RecipientAlias)
	if !domain.ValidateAlias(alias) {
		return nil, apperror.ErrInvalidAlias()
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildTransferIdempotencyKey(req.SenderAccountID, req.IdempotencyKey)

		// Layer 1: Redis idempotency check
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalTransferResult(cached)
		}

		// Layer 2: DB idempotency check
		idempLog, err := s.idempRepo.Get(ctx, idempKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if idempLog != nil {
			return unmarshalTransferResult(idempLog.ResponseJSON)
		}
	}

	recipient, err := s.accountRepo.GetByAlias(ctx, alias)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find recipient: %w", err))
	}
	if recipient == nil {
		return nil, apperror.ErrNotFound("recipient")
	}
	if recipient.ID == req.SenderAccountID {
		return nil, apperror.ErrSelfTransfer()
	}

	var (
		result   *ports.TransferResult
		respJSON []byte
	)
	err = retryOnConflict(ctx, s.policy.MaxRetries, s.log, "transfer", func() error {
		var err error
		result, respJSON, err = s.transferOnce(ctx, req, recipient.ID, idempKey)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Post-process: cache in Redis (best-effort)
	if idempKey != "" && respJSON != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("transfer_id", result.TransferID.String()).
		Str("account_id", req.SenderAccountID.String()).
		Str("recipient_account_id", recipient.ID.String()).
		Int64("amount", req.Amount).
		Msg("transfer completed")

	return result, nil
}

// transferOnce runs one attempt. respJSON is nil when the result was replayed
// from an idempotency log written by a concurrent request.
func (s *TransferServiceImpl) transferOnce(
	ctx context.Context,
	req ports.TransferRequest,
	recipientID uuid.UUID,
	idempKey string,
) (*ports.TransferResult, []byte, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock both rows in ascending id order so opposing transfers cannot deadlock.
	first, second := req.SenderAccountID, recipientID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}
	locked := make(map[uuid.UUID]*domain.Account, 2)
	for _, id := range []uuid.UUID{first, second} {
		acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if acc == nil {
			return nil, nil, apperror.ErrNotFound("account")
		}
		locked[id] = acc
	}
	sender, recipient := locked[req.SenderAccountID], locked[recipientID]

	// A concurrent request with the same key commits before we get the sender lock.
	if idempKey != "" {
		idempLog, err := s.idempRepo.Get(ctx, idempKey)
		if err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if idempLog != nil {
			result, err := unmarshalTransferResult(idempLog.ResponseJSON)
			return result, nil, err
		}
	}

	if !sender.IsActive() || !recipient.IsActive() {
		return nil, nil, apperror.ErrAccountSuspended()
	}

	// Business rule: sufficient funds
	if !sender.CanDebit(req.Amount) {
		return nil, nil, apperror.ErrInsufficientBalance()
	}

	if _, err := s.accountRepo.AdjustBalance(ctx, dbTx, sender.ID, -req.Amount, sender.Version); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	if _, err := s.accountRepo.AdjustBalance(ctx, dbTx, recipient.ID, req.Amount, recipient.Version); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("credit recipient: %w", err))
	}

	now := time.Now().UTC()
	transferID := uuid.New()
	debit := &domain.LedgerEntry{
		ID:                    uuid.New(),
		AccountID:             sender.ID,
		Kind:                  domain.EntryKindTransfer,
		Status:                domain.EntryStatusCompleted,
		Amount:                -req.Amount,
		CounterpartyAccountID: &recipient.ID,
		Transfer: &domain.TransferDetails{
			TransferID:        transferID,
			Direction:         domain.TransferDebit,
			CounterpartyAlias: recipient.Alias,
			Note:              req.Note,
		},
		CreatedAt: now,
		SettledAt: &now,
	}
	credit := &domain.LedgerEntry{
		ID:                    uuid.New(),
		AccountID:             recipient.ID,
		Kind:                  domain.EntryKindTransfer,
		Status:                domain.EntryStatusCompleted,
		Amount:                req.Amount,
		CounterpartyAccountID: &sender.ID,
		Transfer: &domain.TransferDetails{
			TransferID:        transferID,
			Direction:         domain.TransferCredit,
			CounterpartyAlias: sender.Alias,
			Note:              req.Note,
		},
		CreatedAt: now,
		SettledAt: &now,
	}

	if err := s.ledgerRepo.Create(ctx, dbTx, debit); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("create debit entry: %w", err))
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, credit); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("create credit entry: %w", err))
	}

	result := &ports.TransferResult{TransferID: transferID, Debit: debit, Credit: credit}

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(result)
		if err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		idempLogEntry := &domain.IdempotencyLog{
			Key:          idempKey,
			EntryID:      debit.ID,
			ResponseJSON: respJSON,
			CreatedAt:    now,
		}
		if err := s.idempRepo.Create(ctx, dbTx, idempLogEntry); err != nil {
			return nil, nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return result, respJSON, nil
}

// unmarshalTransferResult deserializes a stored transfer result.
func unmarshalTransferResult(data []byte) (*ports.TransferResult, error) {
	result := &ports.TransferResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached transfer: %w", err))
	}
	return result, nil
}
