/*

This file contains the default parameters for the YVM.

Each value keeps the behaviour depositors were promised: a flat 0.1% reallocation fee charged at most
once per cooldown window.

*/

package config

import (
	"time"

	"github.com/elys-network/yvm/internal/monitor"
	"github.com/elys-network/yvm/internal/types"
)

// DefaultVaultParameters provides the baseline parameters. VaultParameters fills in the fee policy
// from the loaded environment.
var DefaultVaultParameters = types.VaultParameters{
	CooldownSeconds: monitor.DefaultCooldownSeconds, // Evaluate at most every 5 minutes.
	// Rationale: yields move slowly and every rebalance costs the pool a fee, so checking
	// more often only adds oracle load.

	FeeDivisor: 1000, // fee = floor(total_deposits / 1000), i.e. 0.1%.
	// Rationale: the fee is a flat cost of reallocating, charged only on a strict yield improvement.

	FeePolicy: types.FeePolicyHaircut,

	MaxYieldBps: 100_000, // Quotes above 1000% are treated as bad data.
	// Rationale: a feed glitch reporting an absurd yield would otherwise trigger a rebalance and a fee.

	MinDeposit: 1, // Any positive deposit is accepted.

	LoopInterval: time.Minute, // How often the run loop asks for a check.
	// Rationale: shorter than the cooldown, so a due check waits at most a minute.
}

// VaultParameters returns the defaults with the fee policy chosen by YVM_FEE_COLLECTOR.
func VaultParameters() types.VaultParameters {
	params := DefaultVaultParameters
	if FeeCollector != "" {
		params.FeePolicy = types.FeePolicyCollect
		params.FeeCollector = FeeCollector
	}
	return params
}
