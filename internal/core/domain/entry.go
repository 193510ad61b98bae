package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when an entry is moved out of a terminal state.
var ErrInvalidTransition = errors.New("invalid entry status transition")

// EntryKind represents the kind of money movement.
type EntryKind string

const (
	EntryKindTransfer   EntryKind = "TRANSFER"
	EntryKindDeposit    EntryKind = "DEPOSIT"
	EntryKindWithdrawal EntryKind = "WITHDRAWAL"
)

// EntryStatus represents the lifecycle state of a ledger entry.
// PENDING -> COMPLETED | CANCELLED; both are terminal.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// TransferDirection tells which leg of an internal transfer an entry records.
type TransferDirection string

const (
	TransferDebit  TransferDirection = "DEBIT"
	TransferCredit TransferDirection = "CREDIT"
)

// TransferDetails is carried by both legs of an internal transfer.
type TransferDetails struct {
	TransferID        uuid.UUID         `json:"transfer_id"` // Shared by the debit and the credit leg
	Direction         TransferDirection `json:"direction"`
	CounterpartyAlias string            `json:"counterparty_alias"`
	Note              string            `json:"note,omitempty"`
}

// WithdrawalDetails describes an external payout.
type WithdrawalDetails struct {
	DestinationAddress string     `json:"destination_address"`
	Network            string     `json:"network"`
	VaultID            *uuid.UUID `json:"vault_id,omitempty"`      // Set when the payout is dispatched
	DispatchedAt       *time.Time `json:"dispatched_at,omitempty"` // Set before the relay is called
}

// IsDispatched reports whether a payout has been handed to the relay. The
// chain outcome of a dispatched withdrawal may be unknown, so it can no
// longer be cancelled.
func (w *WithdrawalDetails) IsDispatched() bool {
	return w != nil && w.DispatchedAt != nil
}

// DepositDetails describes a verified on-chain transfer into a vault.
type DepositDetails struct {
	VaultID     uuid.UUID `json:"vault_id"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	Asset       string    `json:"asset"`
	BlockNumber int64     `json:"block_number"`
}

// LedgerEntry is one side of a money movement on one account.
// Transfer amounts are signed (negative for the debit leg); deposit and
// withdrawal amounts are positive with the sign implied by kind.
type LedgerEntry struct {
	ID                    uuid.UUID          `json:"id"`
	AccountID             uuid.UUID          `json:"account_id"`
	Kind                  EntryKind          `json:"kind"`
	Status                EntryStatus        `json:"status"`
	Amount                int64              `json:"amount"`
	ExternalRef           *string            `json:"external_ref,omitempty"`
	CounterpartyAccountID *uuid.UUID         `json:"counterparty_account_id,omitempty"`
	Transfer              *TransferDetails   `json:"transfer,omitempty"`
	Withdrawal            *WithdrawalDetails `json:"withdrawal,omitempty"`
	Deposit               *DepositDetails    `json:"deposit,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	SettledAt             *time.Time         `json:"settled_at,omitempty"`
}

// IsPending returns true if the entry can still change status.
func (e *LedgerEntry) IsPending() bool {
	return e.Status == EntryStatusPending
}

// IsTerminal returns true if the entry is in a final state.
func (e *LedgerEntry) IsTerminal() bool {
	return e.Status == EntryStatusCompleted || e.Status == EntryStatusCancelled
}

// Transition moves a pending entry to a terminal status.
func (e *LedgerEntry) Transition(to EntryStatus, at time.Time) error {
	if !e.IsPending() || (to != EntryStatusCompleted && to != EntryStatusCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	e.Status = to
	e.SettledAt = &at
	return nil
}

// BalanceEffect returns the change this entry applies to its account when completed.
func (e *LedgerEntry) BalanceEffect() int64 {
	switch e.Kind {
	case EntryKindWithdrawal:
		return -e.Amount
	default:
		return e.Amount
	}
}

// DetailsJSON encodes the details struct matching the entry kind.
func (e *LedgerEntry) DetailsJSON() ([]byte, error) {
	var v interface{}
	switch e.Kind {
	case EntryKindTransfer:
		v = e.Transfer
	case EntryKindWithdrawal:
		v = e.Withdrawal
	case EntryKindDeposit:
		v = e.Deposit
	default:
		return nil, fmt.Errorf("unknown entry kind %q", e.Kind)
	}
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// SetDetailsJSON decodes data into the details struct matching the entry kind.
func (e *LedgerEntry) SetDetailsJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch e.Kind {
	case EntryKindTransfer:
		e.Transfer = &TransferDetails{}
		return json.Unmarshal(data, e.Transfer)
	case EntryKindWithdrawal:
		e.Withdrawal = &WithdrawalDetails{}
		return json.Unmarshal(data, e.Withdrawal)
	case EntryKindDeposit:
		e.Deposit = &DepositDetails{}
		return json.Unmarshal(data, e.Deposit)
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}
