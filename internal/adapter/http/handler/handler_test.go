package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"
	"nusd-wallet/internal/core/ports/mocks"
	"nusd-wallet/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	userToken  = "user-token"
	adminToken = "admin-token"

	testAddress = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	testAlias   = "NUSD-7KQ2MX"
	testTxID    = "9a4f3c2b1d0e8f7a6b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f9a8b7c6d5e4f3a"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv wires the full router to gomock services.
type testEnv struct {
	router  *gin.Engine
	userID  uuid.UUID
	adminID uuid.UUID

	auth      *mocks.MockAuthService
	accounts  *mocks.MockAccountService
	transfers *mocks.MockTransferService
	withdraws *mocks.MockWithdrawalService
	deposits  *mocks.MockDepositService
	vaults    *mocks.MockVaultService
	metrics   *metrics.Metrics
}

func newTestEnv(t *testing.T, checkers ...ports.HealthChecker) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	env := &testEnv{
		userID:    uuid.New(),
		adminID:   uuid.New(),
		auth:      mocks.NewMockAuthService(ctrl),
		accounts:  mocks.NewMockAccountService(ctrl),
		transfers: mocks.NewMockTransferService(ctrl),
		withdraws: mocks.NewMockWithdrawalService(ctrl),
		deposits:  mocks.NewMockDepositService(ctrl),
		vaults:    mocks.NewMockVaultService(ctrl),
		metrics:   metrics.New(),
	}

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate(userToken).Return(&ports.TokenClaims{UserID: env.userID, Role: domain.UserRoleUser}, nil).AnyTimes()
	tokens.EXPECT().Validate(adminToken).Return(&ports.TokenClaims{UserID: env.adminID, Role: domain.UserRoleAdmin}, nil).AnyTimes()
	tokens.EXPECT().Validate(gomock.Any()).Return(nil, errors.New("bad token")).AnyTimes()

	env.router = SetupRouter(RouterDeps{
		AuthSvc:        env.auth,
		AccountSvc:     env.accounts,
		TransferSvc:    env.transfers,
		WithdrawalSvc:  env.withdraws,
		DepositSvc:     env.deposits,
		VaultSvc:       env.vaults,
		TokenSvc:       tokens,
		HealthCheckers: checkers,
		Metrics:        env.metrics,
		Logger:         zerolog.Nop(),
	})
	return env
}

// do sends a request through the router. body may be nil, a string or a value to marshal.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// ownAccount makes GetOwnedAccount return an active account for the test user.
func (e *testEnv) ownAccount(balance int64) *domain.Account {
	acc := &domain.Account{
		ID:        uuid.New(),
		OwnerID:   e.userID,
		Kind:      domain.AccountKindPersonal,
		Name:      "Alice",
		Alias:     testAlias,
		Balance:   balance,
		Version:   1,
		Status:    domain.AccountStatusActive,
		CreatedAt: time.Now(),
	}
	e.accounts.EXPECT().GetOwnedAccount(gomock.Any(), e.userID, acc.ID).Return(acc, nil)
	return acc
}

type envelope struct {
	Data      json.RawMessage   `json:"data"`
	ErrorCode string            `json:"error_code"`
	Meta      map[string]string `json:"meta"`
	RequestID string            `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

func pendingEntry(accountID uuid.UUID, kind domain.EntryKind, amount int64) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Status:    domain.EntryStatusPending,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
}

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }
