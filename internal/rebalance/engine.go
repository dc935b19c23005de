/*

This file contains the rebalance engine. It is entered only once the yield monitor has decided a check
is due, and moves through Idle -> Evaluating -> {NoChange | Rebalancing} -> Idle.

The engine is pure with respect to the vault: it takes the current state and the quotes, and returns a
Plan describing the next state. The vault applies the plan (fee transfer, persistence) and undoes it if
any step fails. Evaluate leaves the engine in NoChange or Rebalancing; the vault calls Settle once the
plan is persisted or rolled back, so the phase covers the whole rebalance.

*/

package rebalance

import (
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yvm/internal/accounting"
	"github.com/elys-network/yvm/internal/analyzer"
	"github.com/elys-network/yvm/internal/logger"
	"github.com/elys-network/yvm/internal/types"
	"github.com/elys-network/yvm/internal/utils"
)

// Phase is a state of the rebalance state machine.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseEvaluating  Phase = "EVALUATING"
	PhaseNoChange    Phase = "NO_CHANGE"
	PhaseRebalancing Phase = "REBALANCING"
)

var engineLogger = logger.GetForComponent("rebalance_engine")

// Plan is the outcome of one evaluation.
type Plan struct {
	Outcome   types.CheckOutcome
	Best      types.YieldQuote
	Fee       sdkmath.Int
	NextState types.VaultState
	Event     *types.RebalanceEvent // Set only when Outcome is OutcomeRebalanced
}

// Engine decides whether to migrate to a better protocol and prices the migration.
type Engine struct {
	feeDivisor   uint64
	feePolicy    types.FeePolicy
	feeCollector string

	mu    sync.Mutex
	phase Phase
}

// NewEngine creates an engine from validated parameters.
func NewEngine(params types.VaultParameters) *Engine {
	return &Engine{
		feeDivisor:   params.FeeDivisor,
		feePolicy:    params.FeePolicy,
		feeCollector: params.FeeCollector,
		phase:        PhaseIdle,
	}
}

// Phase returns the current state machine phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) enter(p Phase) {
	e.mu.Lock()
	prev := e.phase
	e.phase = p
	e.mu.Unlock()
	engineLogger.Debug().Str("from", string(prev)).Str("to", string(p)).Msg("Rebalance phase transition")
}

// Settle returns the engine to Idle after the caller has applied or abandoned the last plan.
func (e *Engine) Settle() {
	e.enter(PhaseIdle)
}

// ReallocationFee returns floor(total / divisor).
func ReallocationFee(total sdkmath.Int, divisor uint64) (sdkmath.Int, error) {
	if divisor == 0 {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrArithmetic, "fee divisor is zero")
	}
	if total.IsNil() || total.IsNegative() {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrInconsistentState, "total deposits must be non-negative")
	}
	return total.Quo(sdkmath.NewIntFromUint64(divisor)), nil
}

// Evaluate selects the best quote and, when it strictly beats the stored yield, plans a rebalance.
// Quotes must be non-empty; an empty set is ErrNoYieldData and the returned plan only advances the
// cooldown timestamp. The caller must call Settle when it is done with the plan.
func (e *Engine) Evaluate(state types.VaultState, quotes []types.YieldQuote, now time.Time) (Plan, error) {
	e.enter(PhaseEvaluating)

	next := state
	next.LastYieldCheck = now.Unix()

	best, err := analyzer.SelectBestYield(quotes)
	if err != nil {
		return Plan{Outcome: types.OutcomeNoData, NextState: next, Fee: sdkmath.ZeroInt()},
			errorsmod.Wrap(types.ErrNoYieldData, err.Error())
	}

	if best.YieldBps <= state.CurrentBestYield {
		e.enter(PhaseNoChange)
		engineLogger.Info().
			Str("bestProtocol", best.Protocol.String()).
			Uint64("bestYieldBps", best.YieldBps).
			Str("currentProtocol", state.CurrentBestProtocol.String()).
			Uint64("currentYieldBps", state.CurrentBestYield).
			Msg("No strictly better yield available, keeping current protocol")
		return Plan{Outcome: types.OutcomeNoChange, Best: best, NextState: next, Fee: sdkmath.ZeroInt()}, nil
	}

	e.enter(PhaseRebalancing)
	fee, err := ReallocationFee(state.TotalDeposits, e.feeDivisor)
	if err != nil {
		return Plan{}, err
	}
	next.TotalDeposits, err = accounting.SubDeposit(state.TotalDeposits, fee)
	if err != nil {
		return Plan{}, err
	}
	next.CurrentBestYield = best.YieldBps
	next.CurrentBestProtocol = best.Protocol

	event := &types.RebalanceEvent{
		VaultID:              state.VaultID,
		Timestamp:            now.Unix(),
		Protocol:             best.Protocol,
		PreviousProtocol:     state.CurrentBestProtocol,
		YieldBps:             best.YieldBps,
		Fee:                  fee,
		TotalBalanceAfterFee: next.TotalDeposits,
	}
	if e.feePolicy == types.FeePolicyCollect && fee.IsPositive() {
		event.FeeRecipient = e.feeCollector
	}

	engineLogger.Info().
		Str("protocol", best.Protocol.String()).
		Str("yield", utils.FormatBpsAsPercent(best.YieldBps)).
		Str("fee", fee.String()).
		Str("feePolicy", string(e.feePolicy)).
		Str("totalAfterFee", next.TotalDeposits.String()).
		Msg("Rebalancing funds")

	return Plan{
		Outcome:   types.OutcomeRebalanced,
		Best:      best,
		Fee:       fee,
		NextState: next,
		Event:     event,
	}, nil
}
