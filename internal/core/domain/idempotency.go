package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the first result of a keyed request so replays
// return it instead of moving funds again.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "account_id:transfer:client_key"
	EntryID      uuid.UUID `json:"entry_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildTransferIdempotencyKey constructs the key for a client-supplied Idempotency-Key.
func BuildTransferIdempotencyKey(accountID uuid.UUID, clientKey string) string {
	return accountID.String() + ":transfer:" + clientKey
}
