package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testTxID         = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	testVaultAddress = "TBXSw8fM4jpQkGc6zZjsVABFpVN7UvXPdV"
	testUSDT         = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
)

type depositTestDeps struct {
	svc         *DepositServiceImpl
	accountRepo *mocks.MockAccountRepository
	ledgerRepo  *mocks.MockLedgerRepository
	vaultRepo   *mocks.MockVaultRepository
	explorer    *mocks.MockBlockchainExplorer
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupDepositService(t *testing.T) *depositTestDeps {
	ctrl := gomock.NewController(t)
	d := &depositTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		ledgerRepo:  mocks.NewMockLedgerRepository(ctrl),
		vaultRepo:   mocks.NewMockVaultRepository(ctrl),
		explorer:    mocks.NewMockBlockchainExplorer(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	policy := DefaultPolicy()
	policy.Asset = testUSDT
	d.svc = NewDepositService(
		d.accountRepo, d.ledgerRepo, d.vaultRepo, d.explorer,
		d.transactor, policy, nil, newTestLogger(),
	)
	return d
}

func confirmedDeposit(amount int64) *domain.ChainTransaction {
	return &domain.ChainTransaction{
		TxID:        testTxID,
		From:        testDestination,
		To:          testVaultAddress,
		Amount:      amount,
		Asset:       testUSDT,
		Confirmed:   true,
		BlockHeight: 61_000_000,
	}
}

// expectVerify wires the read-only lookups Verify performs.
func (d *depositTestDeps) expectVerify(ctx context.Context, chainTx *domain.ChainTransaction, vault *domain.Vault, recorded *domain.LedgerEntry) {
	d.explorer.EXPECT().GetTransaction(ctx, testTxID).Return(chainTx, nil)
	d.vaultRepo.EXPECT().FindByAddress(ctx, chainTx.To).Return(vault, nil)
	d.ledgerRepo.EXPECT().FindByExternalRef(ctx, testTxID).Return(recorded, nil)
}

func TestNormalizeTxID(t *testing.T) {
	ref, ok := NormalizeTxID("  0x" + strings.ToUpper(testTxID) + " ")
	assert.True(t, ok)
	assert.Equal(t, testTxID, ref)

	for _, bad := range []string{"", "abc", testTxID[:63], testTxID + "0", strings.Repeat("g", 64)} {
		_, ok := NormalizeTxID(bad)
		assert.False(t, ok, bad)
	}
}

// ==================== Verify Tests ====================

func TestDepositService_Verify_VaultMatch(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	vault := testVault(0)
	d.expectVerify(ctx, confirmedDeposit(5_000_000), vault, nil)

	report, err := d.svc.Verify(ctx, testTxID)
	require.NoError(t, err)
	assert.True(t, report.VaultMatch)
	assert.Equal(t, vault.ID, report.Vault.ID)
	assert.Equal(t, int64(5_000_000), report.Transaction.Amount)
	assert.Nil(t, report.RecordedEntryID)
}

func TestDepositService_Verify_NoVaultMatch(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.expectVerify(ctx, confirmedDeposit(5_000_000), nil, nil)

	report, err := d.svc.Verify(ctx, testTxID)
	require.NoError(t, err)
	assert.False(t, report.VaultMatch)
	assert.Nil(t, report.Vault)
}

func TestDepositService_Verify_ReportsRecordedEntry(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	recorded := &domain.LedgerEntry{ID: uuid.New()}
	d.expectVerify(ctx, confirmedDeposit(5_000_000), testVault(0), recorded)

	report, err := d.svc.Verify(ctx, testTxID)
	require.NoError(t, err)
	require.NotNil(t, report.RecordedEntryID)
	assert.Equal(t, recorded.ID, *report.RecordedEntryID)
}

func TestDepositService_Verify_Errors(t *testing.T) {
	tests := []struct {
		name     string
		chainTx  *domain.ChainTransaction
		chainErr error
		code     string
	}{
		{"unknown transaction", nil, nil, "PAY_004"},
		{"unsupported contract", nil, ports.ErrUnsupportedTransaction, "DEP_003"},
		{"explorer down", nil, errors.New("502 bad gateway"), "CHN_002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupDepositService(t)
			defer d.ctrl.Finish()

			ctx := context.Background()
			d.explorer.EXPECT().GetTransaction(ctx, testTxID).Return(tt.chainTx, tt.chainErr)

			_, err := d.svc.Verify(ctx, testTxID)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestDepositService_Verify_MalformedReference(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Verify(context.Background(), "not-a-hash")
	assertAppError(t, err, "PAY_002")
}

// ==================== Submit Tests ====================

func TestDepositService_Submit_Success(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	vault := testVault(0)
	acc := testAccount(0, "NUSD-AAAAAA")
	chainTx := confirmedDeposit(5_000_000)

	d.expectVerify(ctx, chainTx, vault, nil)
	d.accountRepo.EXPECT().GetByID(ctx, acc.ID).Return(acc, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	entry, err := d.svc.Submit(ctx, acc.ID, "0x"+testTxID)
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.EntryKindDeposit, entry.Kind)
	assert.Equal(t, domain.EntryStatusPending, entry.Status)
	assert.Equal(t, int64(5_000_000), entry.Amount)
	require.NotNil(t, entry.ExternalRef)
	assert.Equal(t, testTxID, *entry.ExternalRef)
	assert.Equal(t, vault.ID, entry.Deposit.VaultID)
	assert.Equal(t, testUSDT, entry.Deposit.Asset)
}

func TestDepositService_Submit_Rejections(t *testing.T) {
	unconfirmed := confirmedDeposit(5_000_000)
	unconfirmed.Confirmed = false
	wrongAsset := confirmedDeposit(5_000_000)
	wrongAsset.Asset = domain.NativeAsset

	tests := []struct {
		name     string
		chainTx  *domain.ChainTransaction
		vault    *domain.Vault
		recorded *domain.LedgerEntry
		code     string
	}{
		{"no vault match", confirmedDeposit(5_000_000), nil, nil, "DEP_002"},
		{"unconfirmed", unconfirmed, testVault(0), nil, "DEP_004"},
		{"wrong asset", wrongAsset, testVault(0), nil, "DEP_003"},
		{"below minimum", confirmedDeposit(999_999), testVault(0), nil, "PAY_002"},
		{"already recorded", confirmedDeposit(5_000_000), testVault(0), &domain.LedgerEntry{ID: uuid.New()}, "DEP_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupDepositService(t)
			defer d.ctrl.Finish()

			ctx := context.Background()
			d.expectVerify(ctx, tt.chainTx, tt.vault, tt.recorded)
			// No account lookup and no ledger write.

			entry, err := d.svc.Submit(ctx, uuid.New(), testTxID)
			assert.Nil(t, entry)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestDepositService_Submit_DuplicateRace(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	acc := testAccount(0, "NUSD-AAAAAA")

	d.expectVerify(ctx, confirmedDeposit(5_000_000), testVault(0), nil)
	d.accountRepo.EXPECT().GetByID(ctx, acc.ID).Return(acc, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrDuplicateExternalRef)

	_, err := d.svc.Submit(ctx, acc.ID, testTxID)
	assertAppError(t, err, "DEP_001")
	assert.False(t, tx.committed)
}

func TestDepositService_Submit_SuspendedAccount(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acc := testAccount(0, "NUSD-AAAAAA")
	acc.Status = domain.AccountStatusSuspended

	d.expectVerify(ctx, confirmedDeposit(5_000_000), testVault(0), nil)
	d.accountRepo.EXPECT().GetByID(ctx, acc.ID).Return(acc, nil)

	_, err := d.svc.Submit(ctx, acc.ID, testTxID)
	assertAppError(t, err, "AUTH_004")
}

// ==================== Approve / Reject Tests ====================

func pendingDeposit(accountID, vaultID uuid.UUID, amount int64) *domain.LedgerEntry {
	ref := testTxID
	return &domain.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Kind:        domain.EntryKindDeposit,
		Status:      domain.EntryStatusPending,
		Amount:      amount,
		ExternalRef: &ref,
		Deposit:     &domain.DepositDetails{VaultID: vaultID, ToAddress: testVaultAddress, Asset: testUSDT},
	}
}

func TestDepositService_Approve_CreditsAccountAndVault(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	acc := testAccount(10, "NUSD-AAAAAA")
	vault := testVault(100)
	entry := pendingDeposit(acc.ID, vault.ID, 50)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	gomock.InOrder(
		d.ledgerRepo.EXPECT().GetByIDForUpdate(ctx, tx, entry.ID).Return(entry, nil),
		d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, acc.ID).Return(acc, nil),
		d.accountRepo.EXPECT().AdjustBalance(ctx, tx, acc.ID, int64(50), acc.Version).Return(int64(60), nil),
		d.vaultRepo.EXPECT().GetByIDForUpdate(ctx, tx, vault.ID).Return(vault, nil),
		d.vaultRepo.EXPECT().AdjustBalance(ctx, tx, vault.ID, int64(50), vault.Version).Return(int64(150), nil),
		d.ledgerRepo.EXPECT().UpdateStatus(ctx, tx, entry).Return(nil),
	)

	approved, err := d.svc.Approve(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.EntryStatusCompleted, approved.Status)
	assert.NotNil(t, approved.SettledAt)
}

func TestDepositService_Approve_NotPending(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	entry := pendingDeposit(uuid.New(), uuid.New(), 50)
	entry.Status = domain.EntryStatusCompleted

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDForUpdate(ctx, tx, entry.ID).Return(entry, nil)

	_, err := d.svc.Approve(ctx, entry.ID)
	assertAppError(t, err, "LED_001")
}

func TestDepositService_Approve_StaleRowLosesRace(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	acc := testAccount(10, "NUSD-AAAAAA")
	vault := testVault(100)
	entry := pendingDeposit(acc.ID, vault.ID, 50)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDForUpdate(ctx, tx, entry.ID).Return(entry, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, acc.ID).Return(acc, nil)
	d.accountRepo.EXPECT().AdjustBalance(ctx, tx, acc.ID, int64(50), acc.Version).Return(int64(60), nil)
	d.vaultRepo.EXPECT().GetByIDForUpdate(ctx, tx, vault.ID).Return(vault, nil)
	d.vaultRepo.EXPECT().AdjustBalance(ctx, tx, vault.ID, int64(50), vault.Version).Return(int64(150), nil)
	d.ledgerRepo.EXPECT().UpdateStatus(ctx, tx, entry).Return(domain.ErrInvalidTransition)

	_, err := d.svc.Approve(ctx, entry.ID)
	assertAppError(t, err, "LED_001")
	assert.False(t, tx.committed)
}

func TestDepositService_Reject(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	entry := pendingDeposit(uuid.New(), uuid.New(), 50)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDForUpdate(ctx, tx, entry.ID).Return(entry, nil)
	d.ledgerRepo.EXPECT().UpdateStatus(ctx, tx, entry).Return(nil)
	// No balance writes.

	rejected, err := d.svc.Reject(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.EntryStatusCancelled, rejected.Status)
}

func TestDepositService_Reject_WrongKind(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	entry := pendingWithdrawal(uuid.New(), 50)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().GetByIDForUpdate(ctx, tx, entry.ID).Return(entry, nil)

	_, err := d.svc.Reject(ctx, entry.ID)
	assertAppError(t, err, "PAY_004")
}
