/*

This file contains the yield monitor: the cooldown gate in front of the oracle and the normalisation
of oracle data into a deterministically ordered quote list.

*/

package monitor

import (
	"context"
	"sort"
	"time"

	errorsmod "cosmossdk.io/errors"

	"github.com/elys-network/yvm/internal/logger"
	"github.com/elys-network/yvm/internal/types"
)

// DefaultCooldownSeconds is the minimum interval between two evaluated yield checks.
const DefaultCooldownSeconds int64 = 300

var monitorLogger = logger.GetForComponent("yield_monitor")

// Oracle is the external source of per-protocol yields in basis points. The data may be stale or empty.
// Implementations are called synchronously, once per due check.
type Oracle interface {
	FetchYields(ctx context.Context) (map[types.ProtocolID]uint64, error)
}

// IsDue reports whether a check at now may run given the last completed check. A clock that went
// backwards is never due.
func IsDue(now, lastCheck, cooldownSeconds int64) bool {
	return now-lastCheck >= cooldownSeconds
}

// Monitor rate limits yield checks and fetches quotes from the oracle.
type Monitor struct {
	oracle          Oracle
	cooldownSeconds int64
	maxYieldBps     uint64
}

// New creates a monitor. A zero cooldown disables rate limiting.
func New(oracle Oracle, cooldownSeconds int64, maxYieldBps uint64) *Monitor {
	return &Monitor{
		oracle:          oracle,
		cooldownSeconds: cooldownSeconds,
		maxYieldBps:     maxYieldBps,
	}
}

// Due reports whether a check at now may run.
func (m *Monitor) Due(now time.Time, lastCheck int64) bool {
	due := IsDue(now.Unix(), lastCheck, m.cooldownSeconds)
	if !due {
		monitorLogger.Debug().
			Int64("lastCheck", lastCheck).
			Int64("remainingSeconds", m.cooldownSeconds-(now.Unix()-lastCheck)).
			Msg("Yield check skipped, cooldown active")
	}
	return due
}

// Fetch queries the oracle once and returns the usable quotes ordered by protocol id.
// Quotes with an invalid protocol id or a yield above the configured ceiling are dropped.
// An oracle error is returned as is; an empty result is ErrNoYieldData.
func (m *Monitor) Fetch(ctx context.Context) ([]types.YieldQuote, error) {
	raw, err := m.oracle.FetchYields(ctx)
	if err != nil {
		monitorLogger.Error().Err(err).Msg("Oracle request failed")
		return nil, err
	}

	quotes := make([]types.YieldQuote, 0, len(raw))
	for protocol, yieldBps := range raw {
		if err := protocol.ValidateQuoted(); err != nil {
			monitorLogger.Warn().Err(err).Msg("Skipping quote with invalid protocol id")
			continue
		}
		if yieldBps > m.maxYieldBps {
			monitorLogger.Warn().
				Str("protocol", protocol.String()).
				Uint64("yieldBps", yieldBps).
				Uint64("maxYieldBps", m.maxYieldBps).
				Msg("Skipping quote above the yield ceiling")
			continue
		}
		quotes = append(quotes, types.YieldQuote{Protocol: protocol, YieldBps: yieldBps})
	}

	if len(quotes) == 0 {
		return nil, errorsmod.Wrapf(types.ErrNoYieldData, "oracle returned %d quotes, none usable", len(raw))
	}

	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].Protocol < quotes[j].Protocol
	})

	monitorLogger.Debug().Int("quotes", len(quotes)).Msg("Fetched yield quotes")
	return quotes, nil
}
