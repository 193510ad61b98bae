package postgres

import (
	"errors"
	"fmt"

	"nusd-wallet/internal/core/ports"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolations maps constraint and index names to store sentinels.
var uniqueViolations = map[string]error{
	"users_email_key":                       ports.ErrDuplicateEmail,
	"accounts_alias_key":                    ports.ErrDuplicateAlias,
	"vaults_address_key":                    ports.ErrDuplicateVaultAddress,
	"ledger_entries_external_ref_uniq":      ports.ErrDuplicateExternalRef,
	"ledger_entries_one_pending_withdrawal": ports.ErrPendingWithdrawalExists,
}

// mapError translates PostgreSQL errors into ports sentinels and wraps
// everything with op. Errors it does not recognize pass through wrapped.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		if sentinel, ok := uniqueViolations[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%s: %w", op, sentinel)
		}
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return fmt.Errorf("%s: %w: %s", op, ports.ErrConcurrentModification, pgErr.Message)
	case pgerrcode.CheckViolation:
		// A balance CHECK only fails when another writer moved the row first.
		return fmt.Errorf("%s: %w: %s", op, ports.ErrConcurrentModification, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}
