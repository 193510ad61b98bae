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
	"go.uber.org/mock/gomock"
)

func TestRegister_Success(t *testing.T) {
	env := newTestEnv(t)

	user := &domain.User{ID: uuid.New(), Email: "alice@example.com", FullName: "Alice", Role: domain.UserRoleUser}
	acc := &domain.Account{ID: uuid.New(), OwnerID: user.ID, Kind: domain.AccountKindPersonal, Alias: testAlias, Status: domain.AccountStatusActive}

	// Password is passed through untouched, other fields are sanitized.
	env.auth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Email:    "alice@example.com",
		Password: " p<ss word> ",
		FullName: "Alice",
	}).Return(&ports.RegisterResponse{User: user, Account: acc}, nil)

	w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{
		Email:    "alice@example.com",
		Password: " p<ss word> ",
		FullName: "  Alice ",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp dto.RegisterResponse
	decode(t, w, &resp)
	assert.Equal(t, user.ID.String(), resp.UserID)
	assert.Equal(t, "user", resp.Role)
	assert.Equal(t, testAlias, resp.Account.Alias)
	assert.Equal(t, "0", resp.Account.Balance)
	assert.Equal(t, "PERSONAL", resp.Account.Kind)
}

func TestRegister_ValidationError(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty body", nil},
		{"bad email", dto.RegisterRequest{Email: "nope", Password: "password123", FullName: "A"}},
		{"short password", dto.RegisterRequest{Email: "a@b.io", Password: "short", FullName: "A"}},
		{"malformed json", `{"email":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "PAY_002", decode(t, w, nil).ErrorCode)
		})
	}
}

func TestRegister_EmailExists(t *testing.T) {
	env := newTestEnv(t)
	env.auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrEmailExists())

	w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{
		Email: "taken@example.com", Password: "password123", FullName: "Bob",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AUTH_002", decode(t, w, nil).ErrorCode)
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	expiry := time.Now().Add(24 * time.Hour)
	env.auth.EXPECT().Login(gomock.Any(), "alice@example.com", "password123").Return("jwt-token", expiry, nil)

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email: "alice@example.com", Password: "password123",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.LoginResponse
	decode(t, w, &resp)
	assert.Equal(t, "jwt-token", resp.Token)
	assert.Equal(t, expiry.Unix(), resp.Expiry)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.auth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).Return("", time.Time{}, apperror.ErrInvalidCredentials())

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email: "alice@example.com", Password: "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decode(t, w, nil).ErrorCode)
}
