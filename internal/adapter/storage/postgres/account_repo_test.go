package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"nusd-wallet/internal/core/domain"
	"nusd-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestAccount() *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Kind:      domain.AccountKindPersonal,
		Name:      "Alice",
		Alias:     "NUSD-ABC234",
		Balance:   100_000_000,
		Version:   4,
		Status:    domain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func accountColumnNames() []string {
	return []string{"id", "owner_id", "kind", "name", "alias", "receive_address",
		"balance", "version", "status", "created_at", "updated_at"}
}

func accountRow(a *domain.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountColumnNames()).AddRow(
		a.ID, a.OwnerID, a.Kind, a.Name, a.Alias, a.ReceiveAddress,
		a.Balance, a.Version, a.Status, a.CreatedAt, a.UpdatedAt,
	)
}

func TestAccountRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	acc := newTestAccount()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(
			acc.ID, acc.OwnerID, acc.Kind, acc.Name, acc.Alias, acc.ReceiveAddress,
			acc.Balance, acc.Version, acc.Status, acc.CreatedAt, acc.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, acc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Create_DuplicateAlias(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_alias_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, newTestAccount())
	assert.True(t, errors.Is(err, ports.ErrDuplicateAlias))
}

func TestAccountRepo_GetByAlias(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	acc := newTestAccount()
	acc.ReceiveAddress = strPtr("TBXSw8fM4jpQkGc6zZjsVABFpVN7UvXPdV")

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE alias").
		WithArgs(acc.Alias).
		WillReturnRows(accountRow(acc))

	result, err := repo.GetByAlias(context.Background(), acc.Alias)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, acc.ID, result.ID)
	assert.Equal(t, acc.Balance, result.Balance)
	assert.Equal(t, acc.Version, result.Version)
	assert.Equal(t, acc.ReceiveAddress, result.ReceiveAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(accountColumnNames()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestAccountRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	acc := newTestAccount()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs(acc.ID).
		WillReturnRows(accountRow(acc))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByIDForUpdate_LockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "could not obtain lock"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.GetByIDForUpdate(context.Background(), tx, uuid.New())
	assert.ErrorIs(t, err, ports.ErrConcurrentModification)
}

func TestAccountRepo_AdjustBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts SET balance = balance \\+ \\$1").
		WithArgs(int64(-40), id, int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(60)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	balance, err := repo.AdjustBalance(context.Background(), tx, id, -40, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_AdjustBalance_StaleVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts SET balance").
		WithArgs(int64(10), pgxmock.AnyArg(), int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"balance"}))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.AdjustBalance(context.Background(), tx, uuid.New(), 10, 1)
	assert.ErrorIs(t, err, ports.ErrConcurrentModification)
}

func TestAccountRepo_AdjustBalance_CheckViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts SET balance").
		WithArgs(int64(-10), pgxmock.AnyArg(), int64(1)).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "accounts_balance_non_negative"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.AdjustBalance(context.Background(), tx, uuid.New(), -10, 1)
	assert.ErrorIs(t, err, ports.ErrConcurrentModification)
}

func TestAccountRepo_ListByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	personal := newTestAccount()
	business := newTestAccount()
	business.OwnerID = personal.OwnerID
	business.Kind = domain.AccountKindBusiness

	rows := pgxmock.NewRows(accountColumnNames())
	for _, a := range []*domain.Account{personal, business} {
		rows.AddRow(a.ID, a.OwnerID, a.Kind, a.Name, a.Alias, a.ReceiveAddress,
			a.Balance, a.Version, a.Status, a.CreatedAt, a.UpdatedAt)
	}
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE owner_id").
		WithArgs(personal.OwnerID).
		WillReturnRows(rows)

	accounts, err := repo.ListByOwner(context.Background(), personal.OwnerID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, domain.AccountKindPersonal, accounts[0].Kind)
	assert.Equal(t, domain.AccountKindBusiness, accounts[1].Kind)
}

func TestAccountRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET status").
		WithArgs(domain.AccountStatusSuspended, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, uuid.New(), domain.AccountStatusSuspended)
	assert.Error(t, err)
}
