package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vault is a custodial TRON address that receives deposits and funds
// withdrawals. Balance mirrors what the operator believes the address holds.
type Vault struct {
	ID         uuid.UUID `json:"id"`
	Address    string    `json:"address"`
	KeyEnc     *string   `json:"-"` // AES-256-GCM encrypted private key, never expose
	Department *string   `json:"department,omitempty"`
	Balance    int64     `json:"balance"`
	Version    int64     `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasKey reports whether the vault can sign payouts.
func (v *Vault) HasKey() bool {
	return v.KeyEnc != nil && *v.KeyEnc != ""
}

// CanFund reports whether the mirrored balance covers amount.
func (v *Vault) CanFund(amount int64) bool {
	return v.Balance >= amount
}
