/*

This file contains the tunable parameters for the vault manager.

*/

package types

import (
	"fmt"
	"time"
)

// FeePolicy decides where the reallocation fee goes.
type FeePolicy string

const (
	// FeePolicyCollect transfers the fee from the vault account to a collector account.
	FeePolicyCollect FeePolicy = "collect"
	// FeePolicyHaircut deducts the fee from pooled deposits without crediting anyone.
	FeePolicyHaircut FeePolicy = "haircut"
)

// VaultParameters holds every knob the vault reads at runtime.
type VaultParameters struct {
	CooldownSeconds int64         `json:"cooldown_seconds"` // Minimum interval between two evaluated yield checks.
	FeeDivisor      uint64        `json:"fee_divisor"`      // fee = floor(total_deposits / FeeDivisor).
	FeePolicy       FeePolicy     `json:"fee_policy"`
	FeeCollector    string        `json:"fee_collector,omitempty"` // Required by FeePolicyCollect.
	MaxYieldBps     uint64        `json:"max_yield_bps"`           // Quotes above this are treated as bad data.
	MinDeposit      uint64        `json:"min_deposit"`             // Smallest accepted deposit in base units.
	LoopInterval    time.Duration `json:"loop_interval"`
}

// Validate rejects parameter sets the engine cannot run with.
func (p VaultParameters) Validate() error {
	if p.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown cannot be negative: %d", p.CooldownSeconds)
	}
	if p.FeeDivisor == 0 {
		return fmt.Errorf("fee divisor must be positive")
	}
	switch p.FeePolicy {
	case FeePolicyCollect:
		if p.FeeCollector == "" {
			return fmt.Errorf("fee policy %q requires a fee collector account", p.FeePolicy)
		}
	case FeePolicyHaircut:
	default:
		return fmt.Errorf("unknown fee policy %q", p.FeePolicy)
	}
	if p.MaxYieldBps == 0 {
		return fmt.Errorf("max yield must be positive")
	}
	if p.LoopInterval <= 0 {
		return fmt.Errorf("loop interval must be positive")
	}
	return nil
}
