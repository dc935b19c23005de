/*

This file contains the vault service: the only entry point that mutates a vault. Every operation runs
under the vault mutex, reads the persisted record, performs its collaborator calls and persists the
next record. When any step fails, the completed collaborator calls are compensated in reverse order
and nothing is persisted, so the operation appears not to have happened.

The oracle call of a yield check is the one collaborator call made outside the mutex. It runs under
its own deadline and the check re-reads the record before applying anything.

*/

package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/yvm/internal/accounting"
	"github.com/elys-network/yvm/internal/logger"
	"github.com/elys-network/yvm/internal/monitor"
	"github.com/elys-network/yvm/internal/rebalance"
	"github.com/elys-network/yvm/internal/types"
)

var vaultLogger = logger.GetForComponent("vault")

// DefaultOracleTimeout bounds one oracle call when Config.OracleTimeout is zero.
const DefaultOracleTimeout = 30 * time.Second

// Config wires a vault to its collaborators.
type Config struct {
	VaultID      string
	VaultAccount string // Custody account holding the pooled base asset
	BaseDenom    string
	ClaimDenom   string
	Params       types.VaultParameters

	Store   Store
	Custody Custody
	Issuer  TokenIssuer
	Oracle  monitor.Oracle
	Clock   Clock // Defaults to time.Now

	OracleTimeout time.Duration // Defaults to DefaultOracleTimeout
}

// Vault serializes every operation on one vault identity.
type Vault struct {
	cfg     Config
	monitor *monitor.Monitor
	engine  *rebalance.Engine

	mu      sync.Mutex // Guards every read-modify-write of the vault record
	checkMu sync.Mutex // Serializes yield checks, held across the oracle call
}

// New validates cfg and returns a vault. It does not touch the store; call Initialize once per vault.
func New(cfg Config) (*Vault, error) {
	if cfg.VaultID == "" {
		return nil, fmt.Errorf("vault id cannot be empty")
	}
	if cfg.VaultAccount == "" {
		return nil, fmt.Errorf("vault account cannot be empty")
	}
	if err := sdk.ValidateDenom(cfg.BaseDenom); err != nil {
		return nil, fmt.Errorf("invalid base denom: %w", err)
	}
	if err := sdk.ValidateDenom(cfg.ClaimDenom); err != nil {
		return nil, fmt.Errorf("invalid claim denom: %w", err)
	}
	if cfg.BaseDenom == cfg.ClaimDenom {
		return nil, fmt.Errorf("base and claim denom must differ, both are %s", cfg.BaseDenom)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vault parameters: %w", err)
	}
	if cfg.Params.FeePolicy == types.FeePolicyCollect && cfg.Params.FeeCollector == cfg.VaultAccount {
		return nil, fmt.Errorf("fee collector %s cannot be the vault account", cfg.Params.FeeCollector)
	}
	if cfg.Store == nil || cfg.Custody == nil || cfg.Issuer == nil || cfg.Oracle == nil {
		return nil, fmt.Errorf("store, custody, issuer and oracle are all required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.OracleTimeout < 0 {
		return nil, fmt.Errorf("oracle timeout cannot be negative: %s", cfg.OracleTimeout)
	}
	if cfg.OracleTimeout == 0 {
		cfg.OracleTimeout = DefaultOracleTimeout
	}

	return &Vault{
		cfg:     cfg,
		monitor: monitor.New(cfg.Oracle, cfg.Params.CooldownSeconds, cfg.Params.MaxYieldBps),
		engine:  rebalance.NewEngine(cfg.Params),
	}, nil
}

// ID returns the vault identity.
func (v *Vault) ID() string {
	return v.cfg.VaultID
}

// Phase reports where the rebalance state machine currently is.
func (v *Vault) Phase() rebalance.Phase {
	return v.engine.Phase()
}

// Initialize creates the vault record with zero deposits, no protocol and the cooldown starting now.
func (v *Vault) Initialize(ctx context.Context) (types.VaultState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, err := v.cfg.Store.CreateVaultState(ctx, types.NewVaultState(v.cfg.VaultID, v.cfg.Clock()))
	if err != nil {
		return types.VaultState{}, err
	}
	vaultLogger.Info().Str("vault", st.VaultID).Int64("lastYieldCheck", st.LastYieldCheck).Msg("Vault initialized")
	return st, nil
}

// State returns the persisted record.
func (v *Vault) State(ctx context.Context) (types.VaultState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.load(ctx)
}

// Snapshot returns the record together with the claim supply, read under the vault lock.
func (v *Vault) Snapshot(ctx context.Context) (types.VaultSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, err := v.load(ctx)
	if err != nil {
		return types.VaultSnapshot{}, err
	}
	supply, err := v.supply(ctx)
	if err != nil {
		return types.VaultSnapshot{}, err
	}
	return types.VaultSnapshot{State: st, ClaimSupply: supply}, nil
}

// Deposit moves amount base units from depositor into the vault and mints claim tokens for them.
// It returns the number of claim tokens minted.
func (v *Vault) Deposit(ctx context.Context, depositor string, amount sdkmath.Int) (sdkmath.Int, error) {
	if depositor == "" {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrInvalidAmount, "depositor cannot be empty")
	}
	if amount.IsNil() || amount.LT(sdkmath.NewIntFromUint64(v.cfg.Params.MinDeposit)) || !amount.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidAmount, "deposit %s is below the minimum of %d", amount, v.cfg.Params.MinDeposit)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	st, err := v.load(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply, err := v.supply(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}

	shares, err := accounting.SharesForDeposit(amount, supply, st.TotalDeposits)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if shares.IsZero() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidAmount, "deposit %s would mint zero claim tokens", amount)
	}
	next := st
	next.TotalDeposits, err = accounting.AddDeposit(st.TotalDeposits, amount)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if _, err := accounting.AddDeposit(supply, shares); err != nil {
		return sdkmath.Int{}, errorsmod.Wrap(err, "claim supply")
	}

	var undo undoStack
	base := sdk.NewCoin(v.cfg.BaseDenom, amount)
	claim := sdk.NewCoin(v.cfg.ClaimDenom, shares)

	if err := v.cfg.Custody.Transfer(ctx, depositor, v.cfg.VaultAccount, base); err != nil {
		return sdkmath.Int{}, v.abort(ctx, &undo, "transfer deposit into vault", err)
	}
	undo.push("deposit transfer", func(ctx context.Context) error {
		return v.cfg.Custody.Transfer(ctx, v.cfg.VaultAccount, depositor, base)
	})

	if err := v.cfg.Issuer.Mint(ctx, depositor, claim); err != nil {
		return sdkmath.Int{}, v.abort(ctx, &undo, "mint claim tokens", err)
	}
	undo.push("claim mint", func(ctx context.Context) error {
		return v.cfg.Issuer.Burn(ctx, depositor, claim)
	})

	if _, err := v.cfg.Store.SaveVaultState(ctx, next, nil); err != nil {
		return sdkmath.Int{}, v.abort(ctx, &undo, "persist deposit", err)
	}

	vaultLogger.Info().
		Str("depositor", depositor).
		Str("amount", base.String()).
		Str("minted", claim.String()).
		Str("totalDeposits", next.TotalDeposits.String()).
		Msg("Deposit completed")
	return shares, nil
}

// Withdraw burns shares claim tokens held by owner and returns the matching base units to them.
// It returns the number of base units paid out.
func (v *Vault) Withdraw(ctx context.Context, owner string, shares sdkmath.Int) (sdkmath.Int, error) {
	if owner == "" {
		return sdkmath.Int{}, errorsmod.Wrap(types.ErrInvalidAmount, "owner cannot be empty")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	st, err := v.load(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply, err := v.supply(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}

	amount, err := accounting.AmountForWithdrawal(shares, supply, st.TotalDeposits)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if amount.IsZero() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInvalidAmount, "burning %s claim tokens would return zero units", shares)
	}
	next := st
	next.TotalDeposits, err = accounting.SubDeposit(st.TotalDeposits, amount)
	if err != nil {
		return sdkmath.Int{}, err
	}

	var undo undoStack
	claim := sdk.NewCoin(v.cfg.ClaimDenom, shares)
	base := sdk.NewCoin(v.cfg.BaseDenom, amount)

	if err := v.cfg.Issuer.Burn(ctx, owner, claim); err != nil {
		return sdkmath.Int{}, v.abort(ctx, &undo, "burn claim tokens", err)
	}
	undo.push("claim burn", func(ctx context.Context) error {
		return v.cfg.Issuer.Mint(ctx, owner, claim)
	})

	if err := v.cfg.Custody.Transfer(ctx, v.cfg.VaultAccount, owner, base); err != nil {
		return sdkmath.Int{}, v.abort(ctx, &undo, "transfer withdrawal out of vault", err)
	}
	undo.push("withdrawal transfer", func(ctx context.Context) error {
		return v.cfg.Custody.Transfer(ctx, owner, v.cfg.VaultAccount, base)
	})

	if _, err := v.cfg.Store.SaveVaultState(ctx, next, nil); err != nil {
		return sdkmath.Int{}, v.abort(ctx, &undo, "persist withdrawal", err)
	}

	vaultLogger.Info().
		Str("owner", owner).
		Str("burned", claim.String()).
		Str("returned", base.String()).
		Str("totalDeposits", next.TotalDeposits.String()).
		Msg("Withdrawal completed")
	return amount, nil
}

// CheckYields runs one rate limited yield check. Before the cooldown has elapsed it is a no-op that
// returns OutcomeCooldown. Otherwise it asks the oracle once, lets the engine decide and persists the
// result together with the audit event. When the oracle has no usable data only the cooldown
// timestamp advances and the returned error wraps ErrNoYieldData.
//
// Deposits and withdrawals keep running while the oracle answers. If another check moved the cooldown
// in the meantime the quotes are dropped and the call reports OutcomeCooldown.
func (v *Vault) CheckYields(ctx context.Context) (types.CheckResult, error) {
	v.checkMu.Lock()
	defer v.checkMu.Unlock()

	st, now, err := v.dueState(ctx)
	if err != nil {
		return types.CheckResult{}, err
	}
	if !v.monitor.Due(now, st.LastYieldCheck) {
		return types.CheckResult{Outcome: types.OutcomeCooldown, CheckedAt: st.LastYieldCheck}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.OracleTimeout)
	quotes, err := v.monitor.Fetch(fetchCtx)
	cancel()
	if err != nil && !errors.Is(err, types.ErrNoYieldData) {
		return types.CheckResult{}, errorsmod.Wrap(types.ErrCollaborator, err.Error())
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	current, err := v.load(ctx)
	if err != nil {
		return types.CheckResult{}, err
	}
	if current.LastYieldCheck != st.LastYieldCheck {
		vaultLogger.Info().
			Int64("lastYieldCheck", current.LastYieldCheck).
			Msg("Another yield check completed while the oracle was answering, dropping quotes")
		return types.CheckResult{Outcome: types.OutcomeCooldown, CheckedAt: current.LastYieldCheck}, nil
	}
	return v.applyCheck(ctx, current, quotes, now)
}

// dueState reads the record and the clock under the vault lock.
func (v *Vault) dueState(ctx context.Context) (types.VaultState, time.Time, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, err := v.load(ctx)
	if err != nil {
		return types.VaultState{}, time.Time{}, err
	}
	return st, v.cfg.Clock(), nil
}

// applyCheck evaluates quotes against st and persists the plan. The caller holds v.mu.
func (v *Vault) applyCheck(ctx context.Context, st types.VaultState, quotes []types.YieldQuote, now time.Time) (types.CheckResult, error) {
	defer v.engine.Settle()

	plan, evalErr := v.engine.Evaluate(st, quotes, now)
	if evalErr != nil && plan.Outcome != types.OutcomeNoData {
		return types.CheckResult{}, evalErr
	}

	var undo undoStack
	if plan.Event != nil {
		plan.Event.CycleID = CycleIDFromContext(ctx)
		if plan.Event.FeeRecipient != "" {
			fee := sdk.NewCoin(v.cfg.BaseDenom, plan.Fee)
			if err := v.cfg.Custody.Transfer(ctx, v.cfg.VaultAccount, plan.Event.FeeRecipient, fee); err != nil {
				return types.CheckResult{}, v.abort(ctx, &undo, "transfer reallocation fee", err)
			}
			recipient := plan.Event.FeeRecipient
			undo.push("fee transfer", func(ctx context.Context) error {
				return v.cfg.Custody.Transfer(ctx, recipient, v.cfg.VaultAccount, fee)
			})
		}
	}

	if _, err := v.cfg.Store.SaveVaultState(ctx, plan.NextState, plan.Event); err != nil {
		return types.CheckResult{}, v.abort(ctx, &undo, "persist yield check", err)
	}

	result := types.CheckResult{Outcome: plan.Outcome, Event: plan.Event, CheckedAt: now.Unix()}
	if plan.Outcome != types.OutcomeNoData {
		best := plan.Best
		result.Best = &best
	}
	if evalErr != nil {
		vaultLogger.Warn().Err(evalErr).Msg("Yield check found no usable data, cooldown advanced")
		return result, evalErr
	}
	return result, nil
}

func (v *Vault) load(ctx context.Context) (types.VaultState, error) {
	st, found, err := v.cfg.Store.LoadVaultState(ctx, v.cfg.VaultID)
	if err != nil {
		return types.VaultState{}, err
	}
	if !found {
		return types.VaultState{}, errorsmod.Wrapf(types.ErrNotInitialized, "vault %s", v.cfg.VaultID)
	}
	return st, nil
}

func (v *Vault) supply(ctx context.Context) (sdkmath.Int, error) {
	supply, err := v.cfg.Issuer.Supply(ctx, v.cfg.ClaimDenom)
	if err != nil {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrCollaborator, "claim supply: %s", err)
	}
	if supply.IsNil() || supply.IsNegative() || !supply.IsUint64() {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInconsistentState, "claim supply %s out of range", supply)
	}
	return supply, nil
}

// abort compensates every completed step and returns the failure. Collaborator failures are wrapped
// in ErrCollaborator; store errors keep their own kind.
func (v *Vault) abort(ctx context.Context, undo *undoStack, step string, cause error) error {
	vaultLogger.Error().Err(cause).Str("step", step).Msg("Operation failed, rolling back")

	var err error
	if isTyped(cause) {
		err = errorsmod.Wrap(cause, step)
	} else {
		err = errorsmod.Wrapf(types.ErrCollaborator, "%s: %s", step, cause)
	}
	if undoErr := undo.unwind(ctx); undoErr != nil {
		return errors.Join(err, errorsmod.Wrap(types.ErrInconsistentState, fmt.Sprintf("rollback incomplete: %s", undoErr)))
	}
	return err
}

// isTyped reports whether err already carries one of the vault fault kinds.
func isTyped(err error) bool {
	for _, kind := range []error{
		types.ErrArithmetic, types.ErrInconsistentState, types.ErrConcurrentUpdate,
		types.ErrNotInitialized, types.ErrInvalidAmount,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
