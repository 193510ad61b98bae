package handler

import (
	"net/http"
	"testing"
	"time"

	"nusd-wallet/internal/adapter/http/dto"
	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDeposit_Verify(t *testing.T) {
	env := newTestEnv(t)
	vault := &domain.Vault{ID: uuid.New(), Address: testAddress}
	recorded := uuid.New()

	env.deposits.EXPECT().Verify(gomock.Any(), testTxID).Return(&ports.DepositVerification{
		Transaction: domain.ChainTransaction{
			TxID: testTxID, To: testAddress, Amount: 25_000_000, Asset: testAddress,
			Confirmed: true, BlockHeight: 61_000_000, Timestamp: time.Unix(1_700_000_000, 0),
		},
		VaultMatch:      true,
		Vault:           vault,
		RecordedEntryID: &recorded,
	}, nil)

	w := env.do(t, http.MethodGet, "/api/v1/deposits/verify/"+testTxID, userToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.DepositVerificationResponse
	decode(t, w, &resp)
	assert.True(t, resp.VaultMatch)
	assert.Equal(t, "25", resp.Transaction.Amount)
	assert.True(t, resp.Transaction.Confirmed)
	require.NotNil(t, resp.VaultID)
	assert.Equal(t, vault.ID.String(), *resp.VaultID)
	require.NotNil(t, resp.RecordedEntryID)
	assert.Equal(t, recorded.String(), *resp.RecordedEntryID)
}

func TestDeposit_VerifyExplorerDown(t *testing.T) {
	env := newTestEnv(t)
	env.deposits.EXPECT().Verify(gomock.Any(), testTxID).Return(nil, apperror.ErrExplorerUnavailable(assert.AnError))

	w := env.do(t, http.MethodGet, "/api/v1/deposits/verify/"+testTxID, userToken, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "CHN_002", decode(t, w, nil).ErrorCode)
}

func TestDeposit_Submit(t *testing.T) {
	env := newTestEnv(t)
	acc := env.ownAccount(0)
	entry := pendingEntry(acc.ID, domain.EntryKindDeposit, 25_000_000)
	ref := testTxID
	entry.ExternalRef = &ref
	env.deposits.EXPECT().Submit(gomock.Any(), acc.ID, testTxID).Return(entry, nil)

	w := env.do(t, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/deposits", userToken,
		dto.DepositRequest{TxID: testTxID})

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp dto.EntryResponse
	decode(t, w, &resp)
	assert.Equal(t, "DEPOSIT", resp.Kind)
	assert.Equal(t, testTxID, *resp.ExternalRef)
}

func TestDeposit_SubmitDuplicate(t *testing.T) {
	env := newTestEnv(t)
	acc := env.ownAccount(0)
	env.deposits.EXPECT().Submit(gomock.Any(), acc.ID, testTxID).Return(nil, apperror.ErrDuplicateExternalReference())

	w := env.do(t, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/deposits", userToken,
		dto.DepositRequest{TxID: testTxID})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DEP_001", decode(t, w, nil).ErrorCode)
}

func TestDeposit_AdminQueue(t *testing.T) {
	env := newTestEnv(t)
	entry := pendingEntry(uuid.New(), domain.EntryKindDeposit, 5_000_000)

	env.deposits.EXPECT().ListPending(gomock.Any(), 3, 5).Return([]domain.LedgerEntry{*entry}, int64(11), nil)
	w := env.do(t, http.MethodGet, "/api/v1/admin/deposits/pending?page=3&page_size=5", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list dto.ListResponse[dto.EntryResponse]
	decode(t, w, &list)
	assert.Equal(t, 3, list.TotalPages)

	approved := *entry
	approved.Status = domain.EntryStatusCompleted
	env.deposits.EXPECT().Approve(gomock.Any(), entry.ID).Return(&approved, nil)
	w = env.do(t, http.MethodPost, "/api/v1/admin/deposits/"+entry.ID.String()+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.deposits.EXPECT().Reject(gomock.Any(), entry.ID).Return(nil, apperror.ErrEntryNotPending())
	w = env.do(t, http.MethodPost, "/api/v1/admin/deposits/"+entry.ID.String()+"/reject", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LED_001", decode(t, w, nil).ErrorCode)
}

func TestDeposit_AdminQueueBadPaging(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/admin/deposits/pending?page_size=1000", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
