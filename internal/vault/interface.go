package vault

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/yvm/internal/types"
)

// Custody moves base asset units between accounts. A transfer is atomic and fails closed:
// on error no units have moved.
type Custody interface {
	Transfer(ctx context.Context, from, to string, amount sdk.Coin) error
}

// TokenIssuer mints and burns claim tokens and owns their supply.
type TokenIssuer interface {
	Mint(ctx context.Context, to string, amount sdk.Coin) error
	Burn(ctx context.Context, from string, amount sdk.Coin) error
	Supply(ctx context.Context, denom string) (sdkmath.Int, error)
}

// Store persists the vault record. SaveVaultState must write the state and the optional event in
// one transaction and reject a stale version with ErrConcurrentUpdate.
type Store interface {
	CreateVaultState(ctx context.Context, st types.VaultState) (types.VaultState, error)
	LoadVaultState(ctx context.Context, vaultID string) (types.VaultState, bool, error)
	SaveVaultState(ctx context.Context, next types.VaultState, event *types.RebalanceEvent) (types.VaultState, error)
}

// Clock returns the current wall-clock time.
type Clock func() time.Time
