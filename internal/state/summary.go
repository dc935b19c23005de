package state

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yvm/internal/types"
)

// VaultSummary represents high-level vault statistics
type VaultSummary struct {
	VaultID           string           `json:"vault_id"`
	TotalDeposits     sdkmath.Int      `json:"total_deposits"`
	CurrentProtocol   types.ProtocolID `json:"current_protocol"`
	CurrentYieldBps   uint64           `json:"current_yield_bps"`
	LastYieldCheck    int64            `json:"last_yield_check"`
	RebalanceCount    int              `json:"rebalance_count"`
	TotalFeesCharged  sdkmath.Int      `json:"total_fees_charged"`
	TotalCheckCycles  int              `json:"total_check_cycles"`
	LastRebalanceTime int64            `json:"last_rebalance_time,omitempty"`
}

// GetVaultSummary retrieves high-level vault statistics
func (s *Store) GetVaultSummary(ctx context.Context, vaultID string) (*VaultSummary, error) {
	st, found, err := s.LoadVaultState(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorsmod.Wrapf(types.ErrNotInitialized, "vault %s", vaultID)
	}

	summary := &VaultSummary{
		VaultID:          st.VaultID,
		TotalDeposits:    st.TotalDeposits,
		CurrentProtocol:  st.CurrentBestProtocol,
		CurrentYieldBps:  st.CurrentBestYield,
		LastYieldCheck:   st.LastYieldCheck,
		TotalFeesCharged: sdkmath.ZeroInt(),
	}

	// Fees are stored as text in SQLite, so they are summed here rather than in SQL.
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT fee, event_timestamp FROM rebalance_events WHERE vault_id = ?;`), vaultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance fees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			fee string
			ts  int64
		)
		if err := rows.Scan(&fee, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance fee: %w", err)
		}
		amount, ok := sdkmath.NewIntFromString(fee)
		if !ok {
			return nil, errorsmod.Wrapf(types.ErrInconsistentState, "stored fee %q is not an integer", fee)
		}
		summary.TotalFeesCharged = summary.TotalFeesCharged.Add(amount)
		summary.RebalanceCount++
		if ts > summary.LastRebalanceTime {
			summary.LastRebalanceTime = ts
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	summary.TotalCheckCycles, err = s.GetCurrentCycleNumber(ctx, vaultID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get total cycle count")
	}

	log.Debug().
		Str("vault", vaultID).
		Int("rebalances", summary.RebalanceCount).
		Int("totalCycles", summary.TotalCheckCycles).
		Msg("Retrieved vault summary")
	return summary, nil
}
