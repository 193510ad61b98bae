package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister          AuditAction = "REGISTER"
	AuditActionLogin             AuditAction = "LOGIN"
	AuditActionCreateAccount     AuditAction = "CREATE_ACCOUNT"
	AuditActionSetAccountStatus  AuditAction = "SET_ACCOUNT_STATUS"
	AuditActionTransfer          AuditAction = "TRANSFER"
	AuditActionWithdrawalRequest AuditAction = "WITHDRAWAL_REQUEST"
	AuditActionWithdrawalCancel  AuditAction = "WITHDRAWAL_CANCEL"
	AuditActionWithdrawalSettle  AuditAction = "WITHDRAWAL_SETTLE"
	AuditActionDepositSubmit     AuditAction = "DEPOSIT_SUBMIT"
	AuditActionDepositApprove    AuditAction = "DEPOSIT_APPROVE"
	AuditActionDepositReject     AuditAction = "DEPOSIT_REJECT"
	AuditActionCreateVault       AuditAction = "CREATE_VAULT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
