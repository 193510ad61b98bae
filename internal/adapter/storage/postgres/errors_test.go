package postgres

import (
	"context"
	"errors"
	"testing"

	"nusd-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"email", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, ports.ErrDuplicateEmail},
		{"alias", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_alias_key"}, ports.ErrDuplicateAlias},
		{"vault address", &pgconn.PgError{Code: "23505", ConstraintName: "vaults_address_key"}, ports.ErrDuplicateVaultAddress},
		{"external ref", &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_external_ref_uniq"}, ports.ErrDuplicateExternalRef},
		{"pending withdrawal", &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_one_pending_withdrawal"}, ports.ErrPendingWithdrawalExists},
		{"serialization", &pgconn.PgError{Code: "40001"}, ports.ErrConcurrentModification},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ports.ErrConcurrentModification},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, ports.ErrConcurrentModification},
		{"balance check", &pgconn.PgError{Code: "23514", ConstraintName: "accounts_balance_check"}, ports.ErrConcurrentModification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("op", tt.err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "op")
		})
	}
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, mapError("op", nil))

	unknownUnique := &pgconn.PgError{Code: "23505", ConstraintName: "something_else"}
	err := mapError("op", unknownUnique)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.False(t, errors.Is(err, ports.ErrDuplicateAlias))

	plain := errors.New("connection reset")
	assert.ErrorIs(t, mapError("op", plain), plain)
}

func TestTransactor_CommitSerializationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})

	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)

	err = tx.Commit(context.Background())
	assert.ErrorIs(t, err, ports.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

	_, err = NewTransactor(mock).Begin(context.Background())
	assert.Error(t, err)
}

func TestHealthChecker(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	hc := NewHealthCheck(mock)
	assert.NoError(t, hc.Ping(context.Background()))
	assert.Equal(t, "postgresql", hc.Name())
}
