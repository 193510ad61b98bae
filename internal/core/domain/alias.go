package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// AliasPrefix is the fixed prefix of every account alias code.
	AliasPrefix = "NUSD-"
	// AliasSuffixLength is the number of random characters after the prefix.
	AliasSuffixLength = 6

	aliasAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GenerateAlias returns a fresh random alias code such as "NUSD-7KQ2MX".
// Uniqueness is enforced by the store; callers retry on collision.
func GenerateAlias() (string, error) {
	var sb strings.Builder
	sb.Grow(len(AliasPrefix) + AliasSuffixLength)
	sb.WriteString(AliasPrefix)

	max := big.NewInt(int64(len(aliasAlphabet)))
	for i := 0; i < AliasSuffixLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate alias: %w", err)
		}
		sb.WriteByte(aliasAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeAlias trims whitespace and upper-cases user input.
func NormalizeAlias(alias string) string {
	return strings.ToUpper(strings.TrimSpace(alias))
}

// ValidateAlias reports whether alias is syntactically valid: the fixed
// prefix followed by exactly AliasSuffixLength upper-case alphanumerics.
func ValidateAlias(alias string) bool {
	if !strings.HasPrefix(alias, AliasPrefix) {
		return false
	}
	suffix := alias[len(AliasPrefix):]
	if len(suffix) != AliasSuffixLength {
		return false
	}
	for i := 0; i < len(suffix); i++ {
		c := suffix[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
