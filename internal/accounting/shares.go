/*

This file contains the share accounting for the vault: converting base asset amounts into claim tokens
and back using the current pool ratio.

Both directions use floor division. A deposit never receives more claim tokens than its value and a
withdrawal never receives more base units than its claim is worth, so a deposit/withdraw round trip
can leave at most one base unit behind in the pool. The remainder stays with the remaining holders.

*/

package accounting

import (
	"math"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yvm/internal/types"
)

var maxUint64 = sdkmath.NewIntFromUint64(math.MaxUint64)

// SharesForDeposit returns the number of claim tokens to issue for a deposit of amount base units
// into a pool holding totalDeposits units against supply outstanding claim tokens.
//
// An empty pool issues 1:1. A pool where exactly one of supply and totalDeposits is zero is
// inconsistent and is refused rather than priced.
func SharesForDeposit(amount, supply, totalDeposits sdkmath.Int) (sdkmath.Int, error) {
	if err := validatePositive("deposit amount", amount); err != nil {
		return sdkmath.Int{}, err
	}
	if err := validateUnit("claim supply", supply); err != nil {
		return sdkmath.Int{}, err
	}
	if err := validateUnit("total deposits", totalDeposits); err != nil {
		return sdkmath.Int{}, err
	}

	switch {
	case totalDeposits.IsZero() && supply.IsZero():
		return amount, nil
	case totalDeposits.IsZero():
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInconsistentState,
			"claim supply %s outstanding against zero deposits", supply)
	case supply.IsZero():
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInconsistentState,
			"deposits %s held against zero claim supply", totalDeposits)
	}

	// Both operands are at most 64 bits so the product fits in 128 bits; sdkmath.Int holds 256.
	product, err := amount.SafeMul(supply)
	if err != nil {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic, "mint ratio product overflow: %s", err)
	}
	shares, err := product.SafeQuo(totalDeposits)
	if err != nil {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic, "mint ratio division: %s", err)
	}
	if shares.GT(maxUint64) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic, "shares to issue %s exceed uint64", shares)
	}
	return shares, nil
}

// AmountForWithdrawal returns the base units owed for burning shares claim tokens.
func AmountForWithdrawal(shares, supply, totalDeposits sdkmath.Int) (sdkmath.Int, error) {
	if err := validatePositive("share amount", shares); err != nil {
		return sdkmath.Int{}, err
	}
	if err := validateUnit("claim supply", supply); err != nil {
		return sdkmath.Int{}, err
	}
	if err := validateUnit("total deposits", totalDeposits); err != nil {
		return sdkmath.Int{}, err
	}
	if supply.IsZero() {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrArithmetic, "division by zero claim supply")
	}

	product, err := shares.SafeMul(totalDeposits)
	if err != nil {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic, "redeem ratio product overflow: %s", err)
	}
	amount, err := product.SafeQuo(supply)
	if err != nil {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic, "redeem ratio division: %s", err)
	}
	if amount.GT(totalDeposits) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic,
			"withdrawal underflow: %s owed but only %s deposited", amount, totalDeposits)
	}
	return amount, nil
}

// AddDeposit returns total + amount, refusing results that do not fit in uint64.
func AddDeposit(total, amount sdkmath.Int) (sdkmath.Int, error) {
	sum, err := total.SafeAdd(amount)
	if err != nil {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic, "deposit total overflow: %s", err)
	}
	if sum.GT(maxUint64) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic, "deposit total %s exceeds uint64", sum)
	}
	return sum, nil
}

// SubDeposit returns total - amount, refusing to go below zero.
func SubDeposit(total, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.GT(total) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrArithmetic, "deposit total underflow: %s - %s", total, amount)
	}
	return total.Sub(amount), nil
}

func validatePositive(name string, v sdkmath.Int) error {
	if v.IsNil() || !v.IsPositive() {
		return errorsmod.Wrapf(types.ErrInvalidAmount, "%s must be positive", name)
	}
	if v.GT(maxUint64) {
		return errorsmod.Wrapf(types.ErrArithmetic, "%s %s exceeds uint64", name, v)
	}
	return nil
}

func validateUnit(name string, v sdkmath.Int) error {
	if v.IsNil() || v.IsNegative() {
		return errorsmod.Wrapf(types.ErrInconsistentState, "%s must be non-negative", name)
	}
	if v.GT(maxUint64) {
		return errorsmod.Wrapf(types.ErrArithmetic, "%s %s exceeds uint64", name, v)
	}
	return nil
}
