package dto

import (
	"time"

	"nusd-wallet/internal/core/domain"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	FullName string `json:"full_name" binding:"required,min=1,max=100"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID  string          `json:"user_id"`
	Email   string          `json:"email"`
	Role    string          `json:"role"`
	Account AccountResponse `json:"account"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// Amounts on the wire are decimal strings in NUSD ("12.5"), never floats.

// TransferRequest is the request body for an internal transfer.
type TransferRequest struct {
	RecipientAlias string `json:"recipient_alias" binding:"required,nusd_alias"`
	Amount         string `json:"amount" binding:"required,max=32"`
	Note           string `json:"note" binding:"max=140"`
}

// WithdrawalRequest is the request body for an external payout reservation.
type WithdrawalRequest struct {
	Amount             string `json:"amount" binding:"required,max=32"`
	DestinationAddress string `json:"destination_address" binding:"required,tron_address"`
	Network            string `json:"network" binding:"omitempty,oneof=TRC20"`
}

// DepositRequest is the request body for a deposit claim.
type DepositRequest struct {
	TxID string `json:"tx_id" binding:"required,max=80"`
}

// SettleRequest is the request body for settling a pending withdrawal.
type SettleRequest struct {
	VaultID string `json:"vault_id" binding:"required,uuid"`
}

// CreateBusinessAccountRequest is the request body for a business sub-account.
type CreateBusinessAccountRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// CreateVaultRequest is the request body for registering a vault.
type CreateVaultRequest struct {
	Address        string  `json:"address" binding:"required,tron_address"`
	PrivateKey     *string `json:"private_key,omitempty" binding:"omitempty,max=256"`
	Department     *string `json:"department,omitempty" binding:"omitempty,max=100"`
	InitialBalance string  `json:"initial_balance" binding:"omitempty,max=32"`
}

// SetAccountStatusRequest is the request body for suspending or reactivating an account.
type SetAccountStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE SUSPENDED"`
}

// EntryListQuery holds the query string of a history listing.
type EntryListQuery struct {
	Kind     string `form:"kind" binding:"omitempty,oneof=TRANSFER DEPOSIT WITHDRAWAL"`
	Status   string `form:"status" binding:"omitempty,oneof=PENDING COMPLETED CANCELLED"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// PageQuery holds plain pagination parameters.
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	Name           string  `json:"name"`
	Alias          string  `json:"alias"`
	ReceiveAddress *string `json:"receive_address,omitempty"`
	Balance        string  `json:"balance"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
}

// EntryResponse is the public view of a ledger entry.
type EntryResponse struct {
	ID                    string                    `json:"id"`
	AccountID             string                    `json:"account_id"`
	Kind                  string                    `json:"kind"`
	Status                string                    `json:"status"`
	Amount                string                    `json:"amount"`
	ExternalRef           *string                   `json:"external_ref,omitempty"`
	CounterpartyAccountID *string                   `json:"counterparty_account_id,omitempty"`
	Transfer              *domain.TransferDetails   `json:"transfer,omitempty"`
	Withdrawal            *domain.WithdrawalDetails `json:"withdrawal,omitempty"`
	Deposit               *domain.DepositDetails    `json:"deposit,omitempty"`
	CreatedAt             string                    `json:"created_at"`
	SettledAt             *string                   `json:"settled_at,omitempty"`
}

// TransferResponse holds both legs of a transfer.
type TransferResponse struct {
	TransferID string        `json:"transfer_id"`
	Debit      EntryResponse `json:"debit"`
	Credit     EntryResponse `json:"credit"`
}

// VaultResponse is the operator view of a vault. Key material is never returned.
type VaultResponse struct {
	ID         string  `json:"id"`
	Address    string  `json:"address"`
	Department *string `json:"department,omitempty"`
	Balance    string  `json:"balance"`
	HasKey     bool    `json:"has_key"`
	CreatedAt  string  `json:"created_at"`
}

// ChainTransactionResponse is a decoded on-chain transfer.
type ChainTransactionResponse struct {
	TxID        string `json:"tx_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset"`
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height"`
	Timestamp   string `json:"timestamp"`
}

// DepositVerificationResponse reports what the chain says about a reference.
type DepositVerificationResponse struct {
	Transaction     ChainTransactionResponse `json:"transaction"`
	VaultMatch      bool                     `json:"vault_match"`
	VaultID         *string                  `json:"vault_id,omitempty"`
	RecordedEntryID *string                  `json:"recorded_entry_id,omitempty"`
}

// ListResponse wraps a paginated list.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewListResponse computes TotalPages for a page of items.
func NewListResponse[T any](items []T, total int64, page, pageSize int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResponse[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// FromAccount converts a domain account.
func FromAccount(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID.String(),
		Kind:           string(a.Kind),
		Name:           a.Name,
		Alias:          a.Alias,
		ReceiveAddress: a.ReceiveAddress,
		Balance:        domain.FormatAmount(a.Balance),
		Status:         string(a.Status),
		CreatedAt:      formatTime(a.CreatedAt),
	}
}

// FromEntry converts a domain ledger entry.
func FromEntry(e *domain.LedgerEntry) EntryResponse {
	resp := EntryResponse{
		ID:          e.ID.String(),
		AccountID:   e.AccountID.String(),
		Kind:        string(e.Kind),
		Status:      string(e.Status),
		Amount:      domain.FormatAmount(e.Amount),
		ExternalRef: e.ExternalRef,
		Transfer:    e.Transfer,
		Withdrawal:  e.Withdrawal,
		Deposit:     e.Deposit,
		CreatedAt:   formatTime(e.CreatedAt),
	}
	if e.CounterpartyAccountID != nil {
		s := e.CounterpartyAccountID.String()
		resp.CounterpartyAccountID = &s
	}
	if e.SettledAt != nil {
		s := formatTime(*e.SettledAt)
		resp.SettledAt = &s
	}
	return resp
}

// FromEntries converts a page of ledger entries.
func FromEntries(entries []domain.LedgerEntry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, FromEntry(&entries[i]))
	}
	return out
}

// FromVault converts a domain vault.
func FromVault(v *domain.Vault) VaultResponse {
	return VaultResponse{
		ID:         v.ID.String(),
		Address:    v.Address,
		Department: v.Department,
		Balance:    domain.FormatAmount(v.Balance),
		HasKey:     v.HasKey(),
		CreatedAt:  formatTime(v.CreatedAt),
	}
}

// FromChainTransaction converts an explorer transaction.
func FromChainTransaction(tx *domain.ChainTransaction) ChainTransactionResponse {
	return ChainTransactionResponse{
		TxID:        tx.TxID,
		From:        tx.From,
		To:          tx.To,
		Amount:      domain.FormatAmount(tx.Amount),
		Asset:       tx.Asset,
		Confirmed:   tx.Confirmed,
		BlockHeight: tx.BlockHeight,
		Timestamp:   formatTime(tx.Timestamp),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
