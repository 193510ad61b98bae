package service

import (
	"context"
	"testing"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type accountTestDeps struct {
	svc         ports.AccountService
	accountRepo *mocks.MockAccountRepository
	ledgerRepo  *mocks.MockLedgerRepository
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupAccountService(t *testing.T) *accountTestDeps {
	ctrl := gomock.NewController(t)
	d := &accountTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		ledgerRepo:  mocks.NewMockLedgerRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewAccountService(d.accountRepo, d.ledgerRepo, d.transactor, newTestLogger())
	return d
}

func TestAccountService_GetOwnedAccount(t *testing.T) {
	d := setupAccountService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acc := testAccount(42, "NUSD-AAAAAA")
	d.accountRepo.EXPECT().GetByID(ctx, acc.ID).Return(acc, nil).Times(2)

	got, err := d.svc.GetOwnedAccount(ctx, acc.OwnerID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Balance)

	// Someone else's account looks like a missing one.
	_, err = d.svc.GetOwnedAccount(ctx, uuid.New(), acc.ID)
	assertAppError(t, err, "PAY_004")
}

func TestAccountService_GetAccount_NotFound(t *testing.T) {
	d := setupAccountService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.accountRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := d.svc.GetAccount(ctx, id)
	assertAppError(t, err, "PAY_004")
}

func TestAccountService_CreateBusinessAccount(t *testing.T) {
	d := setupAccountService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	ownerID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	acc, err := d.svc.CreateBusinessAccount(ctx, ownerID, "  Corner Shop ")
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, ownerID, acc.OwnerID)
	assert.Equal(t, domain.AccountKindBusiness, acc.Kind)
	assert.Equal(t, "Corner Shop", acc.Name)
	assert.Equal(t, domain.AccountStatusActive, acc.Status)
	assert.True(t, domain.ValidateAlias(acc.Alias))
}

func TestAccountService_CreateBusinessAccount_EmptyName(t *testing.T) {
	d := setupAccountService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.CreateBusinessAccount(context.Background(), uuid.New(), "   ")
	assertAppError(t, err, "PAY_002")
}

func TestAccountService_CreateBusinessAccount_AliasSpaceExhausted(t *testing.T) {
	d := setupAccountService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.transactor.EXPECT().Begin(ctx).Return(&mockTx{}, nil).Times(maxAliasAttempts)
	d.accountRepo.EXPECT().Create(ctx, gomock.Any(), gomock.Any()).Return(ports.ErrDuplicateAlias).Times(maxAliasAttempts)

	_, err := d.svc.CreateBusinessAccount(ctx, uuid.New(), "Shop")
	assertAppError(t, err, "SYS_001")
}

func TestAccountService_ListEntries_NormalizesPage(t *testing.T) {
	d := setupAccountService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	d.ledgerRepo.EXPECT().List(ctx, ports.EntryListParams{
		AccountID: &accountID,
		Page:      1,
		PageSize:  maxPageSize,
	}).Return(nil, int64(0), nil)

	_, _, err := d.svc.ListEntries(ctx, ports.EntryListParams{AccountID: &accountID, Page: -3, PageSize: 5000})
	require.NoError(t, err)
}

func TestAccountService_SetStatus(t *testing.T) {
	d := setupAccountService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	acc := testAccount(0, "NUSD-AAAAAA")

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, acc.ID).Return(acc, nil)
	d.accountRepo.EXPECT().UpdateStatus(ctx, tx, acc.ID, domain.AccountStatusSuspended).Return(nil)

	got, err := d.svc.SetStatus(ctx, acc.ID, domain.AccountStatusSuspended)
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.AccountStatusSuspended, got.Status)
}

func TestAccountService_SetStatus_Invalid(t *testing.T) {
	d := setupAccountService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.SetStatus(context.Background(), uuid.New(), domain.AccountStatus("CLOSED"))
	assertAppError(t, err, "PAY_002")
}
