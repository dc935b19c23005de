/*

This file contains the persisted vault record and the read-only views built on top of it.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// VaultState is the single persisted record of a vault. Claim supply is not part of it: the token
// issuer owns the supply and the vault reads it whenever a ratio is needed.
type VaultState struct {
	VaultID             string      `json:"vault_id"`
	TotalDeposits       sdkmath.Int `json:"total_deposits"`         // Base asset units held by the vault, post fee
	LastYieldCheck      int64       `json:"last_yield_check"`       // Unix seconds of the last completed check
	CurrentBestYield    uint64      `json:"current_best_yield_bps"` // Yield of the selected protocol in basis points
	CurrentBestProtocol ProtocolID  `json:"current_best_protocol"`
	Version             uint64      `json:"version"` // Bumped on every persisted write
	InitializedAt       int64       `json:"initialized_at"`
}

// NewVaultState returns the state written by Initialize.
func NewVaultState(vaultID string, now time.Time) VaultState {
	return VaultState{
		VaultID:             vaultID,
		TotalDeposits:       sdkmath.ZeroInt(),
		LastYieldCheck:      now.Unix(),
		CurrentBestYield:    0,
		CurrentBestProtocol: NoProtocol,
		InitializedAt:       now.Unix(),
	}
}

// Validate checks the invariants that must hold at every observable boundary.
func (s VaultState) Validate() error {
	if s.VaultID == "" {
		return fmt.Errorf("vault id cannot be empty")
	}
	if s.TotalDeposits.IsNil() {
		return fmt.Errorf("total deposits is nil")
	}
	if s.TotalDeposits.IsNegative() {
		return fmt.Errorf("total deposits is negative: %s", s.TotalDeposits)
	}
	if !s.TotalDeposits.IsUint64() {
		return fmt.Errorf("total deposits exceeds uint64: %s", s.TotalDeposits)
	}
	if err := s.CurrentBestProtocol.Validate(); err != nil {
		return err
	}
	if s.CurrentBestProtocol == NoProtocol && s.CurrentBestYield != 0 {
		return fmt.Errorf("yield %d recorded without a selected protocol", s.CurrentBestYield)
	}
	return nil
}

// VaultSnapshot is a consistent view of the vault together with the claim supply read under the same lock.
type VaultSnapshot struct {
	State       VaultState  `json:"state"`
	ClaimSupply sdkmath.Int `json:"claim_supply"`
}

// PegHolds reports whether claim supply is zero exactly when total deposits is zero.
func (s VaultSnapshot) PegHolds() bool {
	return s.ClaimSupply.IsZero() == s.State.TotalDeposits.IsZero()
}
