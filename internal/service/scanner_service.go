package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/metrics"

	"github.com/rs/zerolog"
)

// ScanReport summarizes one scanner pass.
type ScanReport struct {
	Vaults    int
	Transfers int
	Unclaimed []domain.ChainTransaction
}

// DepositScanner finds on-chain transfers into vaults that have no ledger
// entry. It only reports; crediting always goes through a deposit claim.
type DepositScanner struct {
	vaultRepo  ports.VaultRepository
	ledgerRepo ports.LedgerRepository
	explorer   ports.BlockchainExplorer
	lookback   time.Duration
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time

	mu       sync.Mutex
	reported map[string]time.Time // tx id -> block time, pruned after lookback
}

// NewDepositScanner creates a scanner looking lookback into the past on each pass.
func NewDepositScanner(
	vaultRepo ports.VaultRepository,
	ledgerRepo ports.LedgerRepository,
	explorer ports.BlockchainExplorer,
	lookback time.Duration,
	m *metrics.Metrics,
	log zerolog.Logger,
) *DepositScanner {
	return &DepositScanner{
		vaultRepo:  vaultRepo,
		ledgerRepo: ledgerRepo,
		explorer:   explorer,
		lookback:   lookback,
		metrics:    m,
		log:        log,
		now:        time.Now,
		reported:   make(map[string]time.Time),
	}
}

// Scan runs one pass over every vault. A failing vault does not stop the
// pass; its error is joined into the returned error. Each unclaimed transfer
// is reported once per process while it stays inside the lookback window.
func (s *DepositScanner) Scan(ctx context.Context) (*ScanReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vaults, err := s.vaultRepo.List(ctx)
	if err != nil {
		s.metrics.RecordScannerRun(false)
		return nil, fmt.Errorf("list vaults: %w", err)
	}

	now := s.now()
	since := now.Add(-s.lookback)
	s.prune(since)

	report := &ScanReport{Vaults: len(vaults)}
	var errs []error
	for i := range vaults {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.scanVault(ctx, &vaults[i], since, report); err != nil {
			errs = append(errs, fmt.Errorf("vault %s: %w", vaults[i].Address, err))
		}
	}

	err = errors.Join(errs...)
	s.metrics.RecordScannerRun(err == nil)
	s.log.Info().
		Int("vaults", report.Vaults).
		Int("transfers", report.Transfers).
		Int("unclaimed", len(report.Unclaimed)).
		Bool("ok", err == nil).
		Msg("deposit scan finished")
	return report, err
}

func (s *DepositScanner) scanVault(ctx context.Context, vault *domain.Vault, since time.Time, report *ScanReport) error {
	txs, err := s.explorer.ListIncoming(ctx, vault.Address, since)
	if err != nil {
		return err
	}
	report.Transfers += len(txs)

	for _, tx := range txs {
		ref, ok := NormalizeTxID(tx.TxID)
		if !ok {
			s.log.Warn().Str("tx_id", tx.TxID).Msg("explorer returned malformed tx id")
			continue
		}
		if _, seen := s.reported[ref]; seen {
			continue
		}

		entry, err := s.ledgerRepo.FindByExternalRef(ctx, ref)
		if err != nil {
			return fmt.Errorf("find %s: %w", ref, err)
		}
		if entry != nil {
			continue
		}

		s.reported[ref] = tx.Timestamp
		report.Unclaimed = append(report.Unclaimed, tx)
		s.metrics.RecordUnclaimedDeposit(vault.Address)
		s.log.Warn().
			Str("tx_id", ref).
			Str("vault", vault.Address).
			Str("from", tx.From).
			Str("amount", domain.FormatAmount(tx.Amount)).
			Str("asset", tx.Asset).
			Time("block_time", tx.Timestamp).
			Msg("unclaimed deposit")
	}
	return nil
}

func (s *DepositScanner) prune(since time.Time) {
	for ref, at := range s.reported {
		if at.Before(since) {
			delete(s.reported, ref)
		}
	}
}
