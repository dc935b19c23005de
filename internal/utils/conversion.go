/*
This file contains common utility functions for converting between external representations
(strings, basis points, uint64) and SDK math types.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountEmpty      = errors.New("amount is empty")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrAmountTooLarge   = errors.New("amount exceeds uint64")
	ErrConversionFailed = errors.New("conversion failed")
)

var maxUint64 = sdkmath.NewIntFromUint64(math.MaxUint64)

// ParseAmount parses a base-10 integer amount of base units. Amounts must fit in uint64.
func ParseAmount(s string) (sdkmath.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.Int{}, ErrAmountEmpty
	}
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %q is not an integer", ErrConversionFailed, s)
	}
	if amount.IsNegative() {
		return sdkmath.Int{}, ErrAmountNegative
	}
	if amount.GT(maxUint64) {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrAmountTooLarge, s)
	}
	return amount, nil
}

// SDKIntToUint64 converts an SDK Int known to be a base unit amount to uint64.
func SDKIntToUint64(amount sdkmath.Int) (uint64, error) {
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}
	if !amount.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountTooLarge, amount)
	}
	return amount.Uint64(), nil
}

// FormatBpsAsPercent renders basis points as a percentage with two decimals, e.g. 550 -> "5.50%".
func FormatBpsAsPercent(bps uint64) string {
	return fmt.Sprintf("%d.%02d%%", bps/100, bps%100)
}
