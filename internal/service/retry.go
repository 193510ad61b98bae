package service

import (
	"context"
	"errors"

	"nusd-wallet/internal/core/ports"
	"nusd-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

// Policy holds the business rules shared by the settlement services.
type Policy struct {
	MinDeposit    int64
	MinWithdrawal int64
	MaxRetries    int
	// Asset is the TRC20 contract deposits must use and payouts are sent in.
	// Empty accepts any asset and pays out in native TRX.
	Asset string
}

// DefaultPolicy is used by tests and the memory driver.
func DefaultPolicy() Policy {
	return Policy{
		MinDeposit:    1_000_000,
		MinWithdrawal: 1_000_000,
		MaxRetries:    3,
	}
}

// retryOnConflict runs fn up to attempts times while it fails with
// ports.ErrConcurrentModification. fn must open its own transaction so each
// attempt re-reads state.
func retryOnConflict(ctx context.Context, attempts int, log zerolog.Logger, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ports.ErrConcurrentModification) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
		log.Warn().Err(err).Str("operation", op).Int("attempt", attempt).Msg("concurrent modification, retrying")
	}
	return apperror.ErrConcurrentModification(err)
}
