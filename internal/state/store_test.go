package state_test

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yvm/internal/state"
	"github.com/elys-network/yvm/internal/state/statetest"
	"github.com/elys-network/yvm/internal/types"
)

func TestCreateAndLoadVaultState(t *testing.T) {
	store := statetest.NewStore(t)
	ctx := context.Background()

	_, found, err := store.LoadVaultState(ctx, "vault-1")
	require.NoError(t, err)
	require.False(t, found)

	created, err := store.CreateVaultState(ctx, types.NewVaultState("vault-1", time.Unix(1_700_000_000, 0)))
	require.NoError(t, err)
	require.Equal(t, uint64(1), created.Version)

	loaded, found, err := store.LoadVaultState(ctx, "vault-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, created.VaultID, loaded.VaultID)
	require.Equal(t, created.Version, loaded.Version)
	require.Equal(t, created.LastYieldCheck, loaded.LastYieldCheck)
	require.Equal(t, created.InitializedAt, loaded.InitializedAt)
	require.Equal(t, types.NoProtocol, loaded.CurrentBestProtocol)
	require.True(t, loaded.TotalDeposits.IsZero())

	_, err = store.CreateVaultState(ctx, types.NewVaultState("vault-1", time.Unix(1_700_000_100, 0)))
	require.ErrorIs(t, err, types.ErrAlreadyInitialized)
}

func TestCreateVaultState_ConcurrentInitializeHasOneWinner(t *testing.T) {
	store := statetest.NewStore(t)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateVaultState(ctx, types.NewVaultState("vault-1", time.Unix(1_700_000_000, 0)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		if err == nil {
			winners++
			continue
		}
		require.ErrorIs(t, err, types.ErrAlreadyInitialized)
	}
	require.Equal(t, 1, winners)

	cycle, err := store.GetCurrentCycleNumber(ctx, "vault-1")
	require.NoError(t, err)
	require.Zero(t, cycle)
}

func TestSaveVaultState_RoundTripsLargeAmounts(t *testing.T) {
	store := statetest.NewStore(t)
	ctx := context.Background()

	st, err := store.CreateVaultState(ctx, types.NewVaultState("vault-1", time.Unix(0, 0)))
	require.NoError(t, err)

	huge, ok := sdkmath.NewIntFromString("18446744073709551615")
	require.True(t, ok)
	st.TotalDeposits = huge
	saved, err := store.SaveVaultState(ctx, st, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(2), saved.Version)

	loaded, _, err := store.LoadVaultState(ctx, "vault-1")
	require.NoError(t, err)
	require.True(t, huge.Equal(loaded.TotalDeposits))
	require.Equal(t, uint64(2), loaded.Version)
}

func TestSaveVaultState_RejectsStaleVersion(t *testing.T) {
	store := statetest.NewStore(t)
	ctx := context.Background()

	st, err := store.CreateVaultState(ctx, types.NewVaultState("vault-1", time.Unix(0, 0)))
	require.NoError(t, err)

	first := st
	first.TotalDeposits = sdkmath.NewInt(100)
	_, err = store.SaveVaultState(ctx, first, nil)
	require.NoError(t, err)

	// A writer still holding the old version must not overwrite the first write.
	stale := st
	stale.TotalDeposits = sdkmath.NewInt(5)
	_, err = store.SaveVaultState(ctx, stale, nil)
	require.ErrorIs(t, err, types.ErrConcurrentUpdate)

	loaded, _, err := store.LoadVaultState(ctx, "vault-1")
	require.NoError(t, err)
	require.True(t, sdkmath.NewInt(100).Equal(loaded.TotalDeposits))
}

func TestSaveVaultState_AppendsEventAtomically(t *testing.T) {
	store := statetest.NewStore(t)
	ctx := context.Background()

	st, err := store.CreateVaultState(ctx, types.NewVaultState("vault-1", time.Unix(0, 0)))
	require.NoError(t, err)

	st.TotalDeposits = sdkmath.NewInt(1998)
	st.CurrentBestProtocol = types.ProtocolB
	st.CurrentBestYield = 550
	event := &types.RebalanceEvent{
		VaultID:              "vault-1",
		Timestamp:            400,
		Protocol:             types.ProtocolB,
		PreviousProtocol:     types.NoProtocol,
		YieldBps:             550,
		Fee:                  sdkmath.NewInt(2),
		TotalBalanceAfterFee: sdkmath.NewInt(1998),
		CycleID:              "cycle-1",
	}
	_, err = store.SaveVaultState(ctx, st, event)
	require.NoError(t, err)
	require.NotZero(t, event.EventID)

	events, err := store.GetRecentRebalanceEvents(ctx, "vault-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, *event, events[0])

	// A rejected write must not leave its event behind.
	failed := &types.RebalanceEvent{
		VaultID: "vault-1", Timestamp: 800, Protocol: types.ProtocolA, PreviousProtocol: types.ProtocolB,
		YieldBps: 600, Fee: sdkmath.NewInt(1), TotalBalanceAfterFee: sdkmath.NewInt(1997),
	}
	_, err = store.SaveVaultState(ctx, st, failed) // st still carries the old version
	require.ErrorIs(t, err, types.ErrConcurrentUpdate)

	events, err = store.GetRecentRebalanceEvents(ctx, "vault-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestGetRebalanceEventsByProtocol(t *testing.T) {
	store := statetest.NewStore(t)
	ctx := context.Background()

	st, err := store.CreateVaultState(ctx, types.NewVaultState("vault-1", time.Unix(0, 0)))
	require.NoError(t, err)
	st.TotalDeposits = sdkmath.NewInt(10_000)

	for i, p := range []types.ProtocolID{types.ProtocolA, types.ProtocolB, types.ProtocolC} {
		st.CurrentBestProtocol = p
		st.CurrentBestYield = uint64(100 * (i + 1))
		st, err = store.SaveVaultState(ctx, st, &types.RebalanceEvent{
			VaultID: "vault-1", Timestamp: int64(i), Protocol: p, PreviousProtocol: types.NoProtocol,
			YieldBps: st.CurrentBestYield, Fee: sdkmath.NewInt(10), TotalBalanceAfterFee: st.TotalDeposits,
		})
		require.NoError(t, err)
	}

	events, err := store.GetRebalanceEventsByProtocol(ctx, "vault-1", []types.ProtocolID{types.ProtocolA, types.ProtocolC})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, types.ProtocolC, events[0].Protocol)
	require.Equal(t, types.ProtocolA, events[1].Protocol)

	summary, err := store.GetVaultSummary(ctx, "vault-1")
	require.NoError(t, err)
	require.Equal(t, 3, summary.RebalanceCount)
	require.True(t, sdkmath.NewInt(30).Equal(summary.TotalFeesCharged))
	require.Equal(t, types.ProtocolC, summary.CurrentProtocol)
}

func TestCycleCounter(t *testing.T) {
	store := statetest.NewStore(t)
	ctx := context.Background()

	_, err := store.IncrementCycleNumber(ctx, "vault-1")
	require.Error(t, err)

	_, err = store.CreateVaultState(ctx, types.NewVaultState("vault-1", time.Unix(0, 0)))
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementCycleNumber(ctx, "vault-1")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	require.NoError(t, store.ResetCycleNumber(ctx, "vault-1", 0))
	current, err := store.GetCurrentCycleNumber(ctx, "vault-1")
	require.NoError(t, err)
	require.Equal(t, 0, current)

	require.Error(t, store.ResetCycleNumber(ctx, "vault-1", -1))
}

func TestDropSchema(t *testing.T) {
	store := statetest.NewStore(t)
	require.NoError(t, store.DropSchema())
	require.NoError(t, store.EnsureSchema())
	require.NoError(t, store.TestDBConnection(context.Background()))
}

func TestInitDB_RejectsUnknownDriver(t *testing.T) {
	_, err := state.InitDB(state.DBConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestVaultParameters_Versioning(t *testing.T) {
	store := statetest.NewStore(t)
	ctx := context.Background()

	_, err := store.GetActiveVaultParameters(ctx, "vault-1")
	require.ErrorIs(t, err, types.ErrNotInitialized)

	first := types.VaultParameters{
		CooldownSeconds: 300, FeeDivisor: 1000, FeePolicy: types.FeePolicyHaircut,
		MaxYieldBps: 100_000, MinDeposit: 1, LoopInterval: time.Minute,
	}
	saved, err := store.SaveVaultParameters(ctx, "vault-1", first, true)
	require.NoError(t, err)
	require.Equal(t, 1, saved.Version)

	second := first
	second.FeePolicy = types.FeePolicyCollect
	second.FeeCollector = "fee-collector"
	second.MaxYieldBps = 18446744073709551615
	saved, err = store.SaveVaultParameters(ctx, "vault-1", second, true)
	require.NoError(t, err)
	require.Equal(t, 2, saved.Version)

	// An inactive draft does not replace the active version.
	draft := first
	draft.CooldownSeconds = 60
	saved, err = store.SaveVaultParameters(ctx, "vault-1", draft, false)
	require.NoError(t, err)
	require.Equal(t, 3, saved.Version)

	active, err := store.GetActiveVaultParameters(ctx, "vault-1")
	require.NoError(t, err)
	require.Equal(t, 2, active.Version)
	require.True(t, active.Active)
	require.Equal(t, second, active.Parameters)

	// Versions are kept per vault.
	saved, err = store.SaveVaultParameters(ctx, "vault-2", first, true)
	require.NoError(t, err)
	require.Equal(t, 1, saved.Version)
	other, err := store.GetActiveVaultParameters(ctx, "vault-2")
	require.NoError(t, err)
	require.Equal(t, first, other.Parameters)
}

func TestSaveVaultParameters_RejectsInvalid(t *testing.T) {
	store := statetest.NewStore(t)
	_, err := store.SaveVaultParameters(context.Background(), "vault-1", types.VaultParameters{}, true)
	require.Error(t, err)
}
