package vault_test

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yvm/internal/vault"
)

func TestLedger_TransferFailsClosed(t *testing.T) {
	ledger := vault.NewLedger()
	ctx := context.Background()
	require.NoError(t, ledger.Credit("a", sdk.NewInt64Coin("uusdc", 10)))

	require.ErrorIs(t, ledger.Transfer(ctx, "a", "b", sdk.NewInt64Coin("uusdc", 11)), vault.ErrLedger)
	require.ErrorIs(t, ledger.Transfer(ctx, "a", "b", sdk.NewInt64Coin("uusdc", 0)), vault.ErrLedger)
	require.ErrorIs(t, ledger.Transfer(ctx, "a", "", sdk.NewInt64Coin("uusdc", 1)), vault.ErrLedger)
	require.Equal(t, int64(10), ledger.Balance("a", "uusdc").Int64())

	require.NoError(t, ledger.Transfer(ctx, "a", "b", sdk.NewInt64Coin("uusdc", 4)))
	require.Equal(t, int64(6), ledger.Balance("a", "uusdc").Int64())
	require.Equal(t, int64(4), ledger.Balance("b", "uusdc").Int64())
}

func TestLedger_MintBurnTracksSupply(t *testing.T) {
	ledger := vault.NewLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Mint(ctx, "a", sdk.NewInt64Coin("yvusdc", 7)))
	require.ErrorIs(t, ledger.Burn(ctx, "a", sdk.NewInt64Coin("yvusdc", 8)), vault.ErrLedger)
	require.NoError(t, ledger.Burn(ctx, "a", sdk.NewInt64Coin("yvusdc", 3)))

	supply, err := ledger.Supply(ctx, "yvusdc")
	require.NoError(t, err)
	require.Equal(t, int64(4), supply.Int64())
}

func TestLedger_FailNextQueues(t *testing.T) {
	ledger := vault.NewLedger()
	ctx := context.Background()
	boom := errors.New("boom")
	ledger.FailNext(vault.OpSupply, boom)

	_, err := ledger.Supply(ctx, "yvusdc")
	require.ErrorIs(t, err, boom)
	_, err = ledger.Supply(ctx, "yvusdc")
	require.NoError(t, err)
	require.Equal(t, 2, ledger.Calls(vault.OpSupply))
}
