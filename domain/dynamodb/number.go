package dynamodb

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseNumber parses a DynamoDB decimal string into an exact rational.
// Arbitrary precision is preserved; "1" and "1.0" parse to equal values.
func ParseNumber(s string) (*big.Rat, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("empty number")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return rat, nil
}

// FormatNumber renders a rational back to the shortest exact decimal string.
// Sums and differences of decimals are always finite decimals, so the digit
// scan terminates.
func FormatNumber(rat *big.Rat) string {
	if rat.IsInt() {
		return rat.Num().String()
	}
	// Find the smallest scale that renders exactly.
	for scale := 1; ; scale++ {
		rendered := rat.FloatString(scale)
		if parsed, ok := new(big.Rat).SetString(rendered); ok && parsed.Cmp(rat) == 0 {
			return strings.TrimRight(strings.TrimRight(rendered, "0"), ".")
		}
	}
}

// AddNumbers performs exact decimal addition (or subtraction with negative b).
func AddNumbers(a, b string) (string, error) {
	ratA, err := ParseNumber(a)
	if err != nil {
		return "", err
	}
	ratB, err := ParseNumber(b)
	if err != nil {
		return "", err
	}
	return FormatNumber(new(big.Rat).Add(ratA, ratB)), nil
}

// SubNumbers performs exact decimal subtraction.
func SubNumbers(a, b string) (string, error) {
	ratA, err := ParseNumber(a)
	if err != nil {
		return "", err
	}
	ratB, err := ParseNumber(b)
	if err != nil {
		return "", err
	}
	return FormatNumber(new(big.Rat).Sub(ratA, ratB)), nil
}
