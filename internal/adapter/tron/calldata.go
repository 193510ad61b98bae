package tron

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"nusd-wallet/internal/core/domain"
)

// transferSelector is the first four bytes of keccak256("transfer(address,uint256)").
const transferSelector = "a9059cbb"

const abiWordHexLen = 64

var errNotTransferCall = errors.New("calldata is not a TRC20 transfer")

// DecodeTransferCall decodes TRC20 transfer(address,uint256) calldata and
// returns the base58 recipient and the raw token amount.
func DecodeTransferCall(data string) (string, int64, error) {
	data = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(data), "0x"))
	if !strings.HasPrefix(data, transferSelector) {
		return "", 0, errNotTransferCall
	}
	args := data[len(transferSelector):]
	if len(args) < 2*abiWordHexLen {
		return "", 0, fmt.Errorf("%w: short calldata", errNotTransferCall)
	}

	addrWord := args[:abiWordHexLen]
	if _, err := hex.DecodeString(addrWord); err != nil {
		return "", 0, fmt.Errorf("%w: %v", errNotTransferCall, err)
	}
	// The address is right-aligned in its 32-byte word.
	to, err := domain.TronAddressFromHex(addrWord[abiWordHexLen-40:])
	if err != nil {
		return "", 0, err
	}

	amount, ok := new(big.Int).SetString(args[abiWordHexLen:2*abiWordHexLen], 16)
	if !ok {
		return "", 0, fmt.Errorf("%w: bad amount word", errNotTransferCall)
	}
	if !amount.IsInt64() {
		return "", 0, fmt.Errorf("token amount %s out of range", amount)
	}
	return to, amount.Int64(), nil
}
