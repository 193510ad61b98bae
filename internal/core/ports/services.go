package ports

import (
	"context"
	"errors"
	"time"

	"nusd-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.UserRole) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.UserRole
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// AuditService records audit entries without blocking the request.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Chain collaborators ---

// ErrRelayRejected marks a relay error where the signer definitively refused
// the payout. Any other relay error means the outcome is unknown.
var ErrRelayRejected = errors.New("relay rejected payout")

// ErrUnsupportedTransaction is returned by the explorer for transactions that
// are neither a native transfer nor a TRC20 transfer call.
var ErrUnsupportedTransaction = errors.New("unsupported transaction type")

// BlockchainRelay dispatches payouts to the network.
type BlockchainRelay interface {
	SendAsset(ctx context.Context, req PayoutRequest) (string, error) // Returns the external tx reference
}

// PayoutRequest is one outbound transfer from a vault.
type PayoutRequest struct {
	FromAddress    string
	PrivateKey     string // Decrypted key material, never logged
	ToAddress      string
	Amount         int64
	Asset          string // domain.NativeAsset or a TRC20 contract address
	IdempotencyKey string // Stable per withdrawal; a repeated key must not broadcast twice
}

// BlockchainExplorer is the read-only view of the chain.
type BlockchainExplorer interface {
	// GetTransaction returns (nil, nil) when the reference is unknown.
	GetTransaction(ctx context.Context, txID string) (*domain.ChainTransaction, error)
	// ListIncoming lists token transfers into address since the given time.
	ListIncoming(ctx context.Context, address string, since time.Time) ([]domain.ChainTransaction, error)
}

// --- Service Ports (Business Logic) ---

// TransferService moves value between two accounts on the internal ledger.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// TransferRequest holds validated input for an internal transfer.
type TransferRequest struct {
	SenderAccountID uuid.UUID
	RecipientAlias  string
	Amount          int64
	Note            string
	IdempotencyKey  string // Optional
}

// TransferResult holds both legs of a completed transfer.
type TransferResult struct {
	TransferID uuid.UUID           `json:"transfer_id"`
	Debit      *domain.LedgerEntry `json:"debit"`
	Credit     *domain.LedgerEntry `json:"credit"`
}

// WithdrawalService reserves, cancels and settles external payouts.
type WithdrawalService interface {
	Request(ctx context.Context, req WithdrawalRequest) (*domain.LedgerEntry, error)
	Cancel(ctx context.Context, accountID, entryID uuid.UUID) (*domain.LedgerEntry, error)
	Settle(ctx context.Context, entryID, vaultID uuid.UUID) (*domain.LedgerEntry, error)
	ListPending(ctx context.Context, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// WithdrawalRequest holds validated input for a withdrawal reservation.
type WithdrawalRequest struct {
	AccountID          uuid.UUID
	Amount             int64
	DestinationAddress string
	Network            string
}

// DepositService verifies on-chain deposits and runs the operator-gated credit flow.
type DepositService interface {
	Verify(ctx context.Context, txID string) (*DepositVerification, error)
	Submit(ctx context.Context, accountID uuid.UUID, txID string) (*domain.LedgerEntry, error)
	Approve(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error)
	Reject(ctx context.Context, entryID uuid.UUID) (*domain.LedgerEntry, error)
	ListPending(ctx context.Context, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// DepositVerification reports what the chain says about a reference. It never
// implies that anything was credited.
type DepositVerification struct {
	Transaction     domain.ChainTransaction
	VaultMatch      bool
	Vault           *domain.Vault
	RecordedEntryID *uuid.UUID // Set when the reference already has a ledger entry
}

// AccountService exposes balances, history and account administration.
type AccountService interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// GetOwnedAccount returns the account only if ownerID owns it.
	GetOwnedAccount(ctx context.Context, ownerID, accountID uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error)
	CreateBusinessAccount(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Account, error)
	ListEntries(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) (*domain.Account, error)
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Email    string
	Password string
	FullName string
}

// RegisterResponse holds the new user and their personal account.
type RegisterResponse struct {
	User    *domain.User
	Account *domain.Account
}

// VaultService manages the custodial vault registry.
type VaultService interface {
	Create(ctx context.Context, req CreateVaultRequest) (*domain.Vault, error)
	List(ctx context.Context) ([]domain.Vault, error)
}

// CreateVaultRequest holds input for registering a vault.
type CreateVaultRequest struct {
	Address        string
	PrivateKey     *string // Plaintext, encrypted before storage
	Department     *string
	InitialBalance int64
}
