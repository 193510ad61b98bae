package domain

import "time"

// NativeAsset identifies a plain TRX TransferContract.
const NativeAsset = "TRX"

// ChainTransaction is a decoded on-chain transfer as reported by the explorer.
// Addresses are in base58check display form. Asset is NativeAsset or the
// base58 address of the TRC20 contract.
type ChainTransaction struct {
	TxID        string    `json:"tx_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      int64     `json:"amount"`
	Asset       string    `json:"asset"`
	Confirmed   bool      `json:"confirmed"`
	BlockHeight int64     `json:"block_height"`
	Timestamp   time.Time `json:"timestamp"`
}
