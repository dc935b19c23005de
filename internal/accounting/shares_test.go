package accounting_test

import (
	"errors"
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yvm/internal/accounting"
	"github.com/elys-network/yvm/internal/types"
)

func TestSharesForDeposit_FirstDepositIsPegged(t *testing.T) {
	for _, d := range []int64{1, 7, 1000, 123456789} {
		shares, err := accounting.SharesForDeposit(sdkmath.NewInt(d), sdkmath.ZeroInt(), sdkmath.ZeroInt())
		require.NoError(t, err)
		require.Equal(t, sdkmath.NewInt(d), shares)
	}
}

func TestSharesForDeposit_ProRata(t *testing.T) {
	cases := []struct {
		name     string
		amount   int64
		supply   int64
		deposits int64
		want     int64
	}{
		{"one to one pool", 500, 1000, 1000, 500},
		{"pool after fee", 1000, 1000, 999, 1001},
		{"floors the remainder", 10, 3, 7, 4},
		{"dust rounds to zero", 1, 1, 2, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shares, err := accounting.SharesForDeposit(sdkmath.NewInt(tc.amount), sdkmath.NewInt(tc.supply), sdkmath.NewInt(tc.deposits))
			require.NoError(t, err)
			require.Equal(t, sdkmath.NewInt(tc.want), shares)
		})
	}
}

func TestSharesForDeposit_WideIntermediate(t *testing.T) {
	// amount * supply overflows 64 bits but the quotient does not.
	max := sdkmath.NewIntFromUint64(math.MaxUint64)
	shares, err := accounting.SharesForDeposit(max, max, max)
	require.NoError(t, err)
	require.Equal(t, max, shares)
}

func TestSharesForDeposit_ResultOverflow(t *testing.T) {
	max := sdkmath.NewIntFromUint64(math.MaxUint64)
	_, err := accounting.SharesForDeposit(max, max, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrArithmetic)
}

func TestSharesForDeposit_InconsistentPool(t *testing.T) {
	_, err := accounting.SharesForDeposit(sdkmath.NewInt(10), sdkmath.NewInt(5), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInconsistentState)

	_, err = accounting.SharesForDeposit(sdkmath.NewInt(10), sdkmath.ZeroInt(), sdkmath.NewInt(5))
	require.ErrorIs(t, err, types.ErrInconsistentState)
}

func TestSharesForDeposit_RejectsNonPositive(t *testing.T) {
	_, err := accounting.SharesForDeposit(sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	_, err = accounting.SharesForDeposit(sdkmath.NewInt(-3), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestAmountForWithdrawal(t *testing.T) {
	cases := []struct {
		name     string
		shares   int64
		supply   int64
		deposits int64
		want     int64
	}{
		{"full exit", 1000, 1000, 1000, 1000},
		{"after fee", 1000, 2000, 1998, 999},
		{"floors", 1, 3, 10, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := accounting.AmountForWithdrawal(sdkmath.NewInt(tc.shares), sdkmath.NewInt(tc.supply), sdkmath.NewInt(tc.deposits))
			require.NoError(t, err)
			require.Equal(t, sdkmath.NewInt(tc.want), amount)
		})
	}
}

func TestAmountForWithdrawal_Faults(t *testing.T) {
	_, err := accounting.AmountForWithdrawal(sdkmath.NewInt(1), sdkmath.ZeroInt(), sdkmath.NewInt(10))
	require.ErrorIs(t, err, types.ErrArithmetic)

	// More shares than exist would pay out more than the pool holds.
	_, err = accounting.AmountForWithdrawal(sdkmath.NewInt(11), sdkmath.NewInt(10), sdkmath.NewInt(10))
	require.ErrorIs(t, err, types.ErrArithmetic)
	require.False(t, errors.Is(err, types.ErrInvalidAmount))
}

func TestRoundTripNeverFavorsWithdrawer(t *testing.T) {
	supply := sdkmath.NewInt(3)
	deposits := sdkmath.NewInt(10)

	for _, amount := range []int64{1, 2, 5, 13, 97, 1000} {
		shares, err := accounting.SharesForDeposit(sdkmath.NewInt(amount), supply, deposits)
		require.NoError(t, err)
		if shares.IsZero() {
			continue
		}
		newSupply := supply.Add(shares)
		newDeposits := deposits.AddRaw(amount)

		back, err := accounting.AmountForWithdrawal(shares, newSupply, newDeposits)
		require.NoError(t, err)
		require.True(t, back.LTE(sdkmath.NewInt(amount)), "deposit %d returned %s", amount, back)
	}
}

func TestWithdrawThenRedepositBoundsSupplyLoss(t *testing.T) {
	supply := sdkmath.NewInt(1500)
	deposits := sdkmath.NewInt(1499)
	shares := sdkmath.NewInt(700)

	amount, err := accounting.AmountForWithdrawal(shares, supply, deposits)
	require.NoError(t, err)
	supply = supply.Sub(shares)
	deposits = deposits.Sub(amount)

	reissued, err := accounting.SharesForDeposit(amount, supply, deposits)
	require.NoError(t, err)
	require.True(t, reissued.LTE(shares))
	require.True(t, reissued.GTE(shares.SubRaw(1)), "lost more than one share: %s of %s", reissued, shares)
}

func TestAddSubDeposit(t *testing.T) {
	max := sdkmath.NewIntFromUint64(math.MaxUint64)
	_, err := accounting.AddDeposit(max, sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrArithmetic)

	total, err := accounting.AddDeposit(sdkmath.NewInt(1000), sdkmath.NewInt(500))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1500), total)

	_, err = accounting.SubDeposit(sdkmath.NewInt(5), sdkmath.NewInt(6))
	require.ErrorIs(t, err, types.ErrArithmetic)
}
