package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountKind distinguishes a user's own wallet from merchant sub-accounts.
type AccountKind string

const (
	AccountKindPersonal AccountKind = "PERSONAL"
	AccountKindBusiness AccountKind = "BUSINESS"
)

// AccountStatus represents the state of an account. Accounts are never
// hard-deleted, only suspended.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// Account holds one NUSD balance. Balance is in base units (6 decimals)
// and never negative. Version is bumped on every balance write.
type Account struct {
	ID             uuid.UUID     `json:"id"`
	OwnerID        uuid.UUID     `json:"owner_id"`
	Kind           AccountKind   `json:"kind"`
	Name           string        `json:"name"`
	Alias          string        `json:"alias"`
	ReceiveAddress *string       `json:"receive_address,omitempty"`
	Balance        int64         `json:"balance"`
	Version        int64         `json:"-"`
	Status         AccountStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsActive returns true if the account may move funds.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// CanDebit reports whether amount can be taken from the balance.
func (a *Account) CanDebit(amount int64) bool {
	return amount > 0 && a.Balance >= amount
}

// ValidAccountStatus reports whether s is a known status.
func ValidAccountStatus(s AccountStatus) bool {
	return s == AccountStatusActive || s == AccountStatusSuspended
}
