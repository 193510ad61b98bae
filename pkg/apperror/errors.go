package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string            `json:"error_code"`
	Message    string            `json:"message"`
	HTTPStatus int               `json:"-"`
	Meta       map[string]string `json:"meta,omitempty"` // Machine-readable context, e.g. the conflicting entry id
	Err        error             `json:"-"`              // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithMeta returns the error with an additional meta key set.
func (e *AppError) WithMeta(key, value string) *AppError {
	if e.Meta == nil {
		e.Meta = make(map[string]string)
	}
	e.Meta[key] = value
	return e
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Code returns the error code of err if it is an *AppError, or "" otherwise.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Balance & amounts (PAY) ----

func ErrInsufficientBalance() *AppError {
	return New("PAY_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrAmountBelowMinimum(minimum string) *AppError {
	return New("PAY_002", fmt.Sprintf("Amount is below the minimum of %s", minimum), http.StatusBadRequest)
}

func ErrDuplicateRequest() *AppError {
	return New("PAY_003", "Duplicate request", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Internal transfers (TRF) ----

func ErrSelfTransfer() *AppError {
	return New("TRF_001", "Cannot transfer to the same account", http.StatusUnprocessableEntity)
}

func ErrInvalidAlias() *AppError {
	return New("TRF_002", "Invalid alias code", http.StatusBadRequest)
}

// ---- Withdrawals (WDR) ----

func ErrAlreadyPending(entryID string) *AppError {
	return New("WDR_001", "A withdrawal is already pending for this account", http.StatusConflict).
		WithMeta("entry_id", entryID)
}

func ErrInsufficientVaultBalance() *AppError {
	return New("WDR_002", "Insufficient vault balance", http.StatusConflict)
}

func ErrInvalidAddress() *AppError {
	return New("WDR_003", "Invalid destination address", http.StatusBadRequest)
}

func ErrWithdrawalDispatched() *AppError {
	return New("WDR_004", "Withdrawal has been dispatched to the network", http.StatusConflict)
}

func ErrDispatchVaultMismatch() *AppError {
	return New("WDR_005", "Withdrawal was dispatched from a different vault", http.StatusConflict)
}

// ---- Ledger (LED) ----

func ErrEntryNotPending() *AppError {
	return New("LED_001", "Entry is not pending", http.StatusConflict)
}

// ---- Deposits (DEP) ----

func ErrDuplicateExternalReference() *AppError {
	return New("DEP_001", "External reference has already been recorded", http.StatusConflict)
}

func ErrNoVaultMatch() *AppError {
	return New("DEP_002", "Transaction destination does not match any vault", http.StatusUnprocessableEntity)
}

func ErrUnsupportedAsset() *AppError {
	return New("DEP_003", "Transaction does not transfer a supported asset", http.StatusUnprocessableEntity)
}

func ErrDepositUnconfirmed() *AppError {
	return New("DEP_004", "Transaction is not confirmed yet", http.StatusUnprocessableEntity)
}

// ---- Vaults (VLT) ----

func ErrVaultExists() *AppError {
	return New("VLT_001", "Vault address already registered", http.StatusConflict)
}

func ErrVaultKeyMissing() *AppError {
	return New("VLT_002", "Vault has no signing key", http.StatusUnprocessableEntity)
}

// ---- Chain collaborators (CHN) ----

// ErrRelay reports a failed payout dispatch. outcome is "failed" when the relay
// rejected the request and "unknown" when it timed out or the response was lost.
func ErrRelay(outcome string, err error) *AppError {
	return Wrap("CHN_001", "Payout relay error", http.StatusBadGateway, err).
		WithMeta("outcome", outcome)
}

func ErrExplorerUnavailable(err error) *AppError {
	return Wrap("CHN_002", "Block explorer unavailable", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("AUTH_002", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAccountSuspended() *AppError {
	return New("AUTH_004", "Account is suspended", http.StatusForbidden)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Operation not permitted", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

func ErrConcurrentModification(err error) *AppError {
	return Wrap("SYS_004", "Concurrent modification, please retry", http.StatusConflict, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
