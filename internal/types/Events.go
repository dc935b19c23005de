package types

import (
	sdkmath "cosmossdk.io/math"
)

// RebalanceEvent is the append-only audit record emitted after a successful rebalance.
type RebalanceEvent struct {
	EventID              int64       `json:"event_id,omitempty"` // Assigned by the store
	VaultID              string      `json:"vault_id"`
	Timestamp            int64       `json:"timestamp"`
	Protocol             ProtocolID  `json:"protocol"`
	PreviousProtocol     ProtocolID  `json:"previous_protocol"`
	YieldBps             uint64      `json:"yield_bps"`
	Fee                  sdkmath.Int `json:"fee"`
	FeeRecipient         string      `json:"fee_recipient,omitempty"` // Empty under the haircut policy
	TotalBalanceAfterFee sdkmath.Int `json:"total_balance_after_fee"`
	CycleID              string      `json:"cycle_id,omitempty"`
}

// CheckOutcome says how a CheckYields call ended.
type CheckOutcome string

const (
	OutcomeCooldown   CheckOutcome = "COOLDOWN"   // Called before the cooldown elapsed, nothing touched
	OutcomeNoChange   CheckOutcome = "NO_CHANGE"  // Evaluated, best yield not strictly better
	OutcomeRebalanced CheckOutcome = "REBALANCED" // Switched protocol and charged the fee
	OutcomeNoData     CheckOutcome = "NO_DATA"    // Oracle returned nothing usable, only the cooldown advanced
)

// CheckResult reports the outcome of a yield check.
type CheckResult struct {
	Outcome   CheckOutcome    `json:"outcome"`
	Best      *YieldQuote     `json:"best,omitempty"`
	Event     *RebalanceEvent `json:"event,omitempty"`
	CheckedAt int64           `json:"checked_at"`
}
