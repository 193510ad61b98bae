package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// tronAddressPrefix is the first byte of every mainnet account address.
const tronAddressPrefix byte = 0x41

const (
	tronPayloadLen  = 21
	tronChecksumLen = 4
)

// ErrInvalidTronAddress is returned for malformed addresses in either encoding.
var ErrInvalidTronAddress = errors.New("invalid tron address")

// TronAddressFromHex converts the internal hex form ("41" + 20 bytes, or the
// bare 20 bytes found in contract calldata) to the base58check display form.
func TronAddressFromHex(h string) (string, error) {
	h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "0x")
	raw, err := hex.DecodeString(h)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTronAddress, err)
	}
	if len(raw) == tronPayloadLen-1 {
		raw = append([]byte{tronAddressPrefix}, raw...)
	}
	if len(raw) != tronPayloadLen || raw[0] != tronAddressPrefix {
		return "", fmt.Errorf("%w: unexpected hex payload %q", ErrInvalidTronAddress, h)
	}

	sum := checksum(raw)
	return base58.Encode(append(raw, sum...)), nil
}

// TronAddressToHex converts a base58check address to its "41…" hex form.
func TronAddressToHex(addr string) (string, error) {
	raw, err := decodeTronAddress(addr)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// ValidateTronAddress reports whether addr is a well-formed base58check address.
func ValidateTronAddress(addr string) bool {
	_, err := decodeTronAddress(addr)
	return err == nil
}

func decodeTronAddress(addr string) ([]byte, error) {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTronAddress, err)
	}
	if len(decoded) != tronPayloadLen+tronChecksumLen {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidTronAddress, len(decoded))
	}
	payload, sum := decoded[:tronPayloadLen], decoded[tronPayloadLen:]
	if payload[0] != tronAddressPrefix {
		return nil, fmt.Errorf("%w: prefix %#x", ErrInvalidTronAddress, payload[0])
	}
	if !bytes.Equal(sum, checksum(payload)) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidTronAddress)
	}
	return payload, nil
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:tronChecksumLen]
}
