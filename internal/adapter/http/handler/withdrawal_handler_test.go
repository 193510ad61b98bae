package handler

import (
	"net/http"
	"testing"

	"nusd-wallet/internal/adapter/http/dto"
	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWithdrawal_Request(t *testing.T) {
	env := newTestEnv(t)
	acc := env.ownAccount(50_000_000)

	entry := pendingEntry(acc.ID, domain.EntryKindWithdrawal, 20_000_000)
	entry.Withdrawal = &domain.WithdrawalDetails{DestinationAddress: testAddress, Network: "TRC20"}
	env.withdraws.EXPECT().Request(gomock.Any(), ports.WithdrawalRequest{
		AccountID:          acc.ID,
		Amount:             20_000_000,
		DestinationAddress: testAddress,
	}).Return(entry, nil)

	w := env.do(t, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/withdrawals", userToken,
		dto.WithdrawalRequest{Amount: "20", DestinationAddress: " " + testAddress + " "})

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp dto.EntryResponse
	decode(t, w, &resp)
	assert.Equal(t, entry.ID.String(), resp.ID)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, testAddress, resp.Withdrawal.DestinationAddress)
}

func TestWithdrawal_Request_ExplicitNetwork(t *testing.T) {
	env := newTestEnv(t)
	acc := env.ownAccount(50_000_000)

	entry := pendingEntry(acc.ID, domain.EntryKindWithdrawal, 5_000_000)
	env.withdraws.EXPECT().Request(gomock.Any(), ports.WithdrawalRequest{
		AccountID:          acc.ID,
		Amount:             5_000_000,
		DestinationAddress: testAddress,
		Network:            "TRC20",
	}).Return(entry, nil)

	w := env.do(t, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/withdrawals", userToken,
		dto.WithdrawalRequest{Amount: "5", DestinationAddress: testAddress, Network: "TRC20"})

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestWithdrawal_CancelDispatched(t *testing.T) {
	env := newTestEnv(t)
	acc := env.ownAccount(0)
	entryID := uuid.New()
	env.withdraws.EXPECT().Cancel(gomock.Any(), acc.ID, entryID).Return(nil, apperror.ErrWithdrawalDispatched())

	w := env.do(t, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/withdrawals/"+entryID.String()+"/cancel", userToken, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "WDR_004", decode(t, w, nil).ErrorCode)
}

func TestWithdrawal_InvalidAddress(t *testing.T) {
	env := newTestEnv(t)
	acc := env.ownAccount(50_000_000)

	w := env.do(t, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/withdrawals", userToken,
		dto.WithdrawalRequest{Amount: "20", DestinationAddress: "0xdeadbeef"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WDR_003", decode(t, w, nil).ErrorCode)
}

func TestWithdrawal_AlreadyPending(t *testing.T) {
	env := newTestEnv(t)
	acc := env.ownAccount(50_000_000)
	existing := uuid.NewString()
	env.withdraws.EXPECT().Request(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrAlreadyPending(existing))

	w := env.do(t, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/withdrawals", userToken,
		dto.WithdrawalRequest{Amount: "1", DestinationAddress: testAddress})

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, "WDR_001", resp.ErrorCode)
	assert.Equal(t, existing, resp.Meta["entry_id"])
}

func TestWithdrawal_Cancel(t *testing.T) {
	env := newTestEnv(t)
	acc := env.ownAccount(0)
	entry := pendingEntry(acc.ID, domain.EntryKindWithdrawal, 1_000_000)
	entry.Status = domain.EntryStatusCancelled
	env.withdraws.EXPECT().Cancel(gomock.Any(), acc.ID, entry.ID).Return(entry, nil)

	w := env.do(t, http.MethodPost, "/api/v1/accounts/"+acc.ID.String()+"/withdrawals/"+entry.ID.String()+"/cancel", userToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.EntryResponse
	decode(t, w, &resp)
	assert.Equal(t, "CANCELLED", resp.Status)
}

func TestWithdrawal_SettleAdmin(t *testing.T) {
	env := newTestEnv(t)
	entry := pendingEntry(uuid.New(), domain.EntryKindWithdrawal, 3_000_000)
	vaultID := uuid.New()

	settled := *entry
	settled.Status = domain.EntryStatusCompleted
	ref := "f00d"
	settled.ExternalRef = &ref
	env.withdraws.EXPECT().Settle(gomock.Any(), entry.ID, vaultID).Return(&settled, nil)

	w := env.do(t, http.MethodPost, "/api/v1/admin/withdrawals/"+entry.ID.String()+"/settle", adminToken,
		dto.SettleRequest{VaultID: vaultID.String()})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.EntryResponse
	decode(t, w, &resp)
	assert.Equal(t, "COMPLETED", resp.Status)
	require.NotNil(t, resp.ExternalRef)
	assert.Equal(t, "f00d", *resp.ExternalRef)
}

func TestWithdrawal_SettleForbiddenForUsers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/admin/withdrawals/"+uuid.NewString()+"/settle", userToken,
		dto.SettleRequest{VaultID: uuid.NewString()})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTH_005", decode(t, w, nil).ErrorCode)
}

func TestWithdrawal_SettleBadVaultID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/admin/withdrawals/"+uuid.NewString()+"/settle", adminToken,
		dto.SettleRequest{VaultID: "vault-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawal_SettleRelayUnknown(t *testing.T) {
	env := newTestEnv(t)
	env.withdraws.EXPECT().Settle(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrRelay("unknown", assert.AnError))

	w := env.do(t, http.MethodPost, "/api/v1/admin/withdrawals/"+uuid.NewString()+"/settle", adminToken,
		dto.SettleRequest{VaultID: uuid.NewString()})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, "CHN_001", resp.ErrorCode)
	assert.Equal(t, "unknown", resp.Meta["outcome"])
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestWithdrawal_ListPending(t *testing.T) {
	env := newTestEnv(t)
	env.withdraws.EXPECT().ListPending(gomock.Any(), 1, 20).Return([]domain.LedgerEntry{
		*pendingEntry(uuid.New(), domain.EntryKindWithdrawal, 1_000_000),
		*pendingEntry(uuid.New(), domain.EntryKindWithdrawal, 2_000_000),
	}, int64(2), nil)

	w := env.do(t, http.MethodGet, "/api/v1/admin/withdrawals/pending", adminToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.ListResponse[dto.EntryResponse]
	decode(t, w, &resp)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 1, resp.TotalPages)
}
