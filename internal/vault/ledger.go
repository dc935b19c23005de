/*

This file contains an in-memory ledger that implements both Custody and TokenIssuer. Paper mode runs the
vault against it, and the tests use it as a fake with injectable failures.

Every call validates its input and fails closed: a rejected call leaves balances and supply untouched.

*/

package vault

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// LedgerOp names a ledger call for failure injection.
type LedgerOp string

const (
	OpTransfer LedgerOp = "transfer"
	OpMint     LedgerOp = "mint"
	OpBurn     LedgerOp = "burn"
	OpSupply   LedgerOp = "supply"
)

// ErrLedger is returned for every call the ledger rejects.
var ErrLedger = errorsmod.Register("ledger", 2, "ledger rejected the call")

// Ledger keeps balances per account and denom, and the supply of every minted denom.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[string]sdkmath.Int
	supply   map[string]sdkmath.Int
	failures map[LedgerOp][]error
	calls    map[LedgerOp]int
}

var (
	_ Custody     = (*Ledger)(nil)
	_ TokenIssuer = (*Ledger)(nil)
)

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]map[string]sdkmath.Int),
		supply:   make(map[string]sdkmath.Int),
		failures: make(map[LedgerOp][]error),
		calls:    make(map[LedgerOp]int),
	}
}

// Credit adds coin to account out of thin air. Paper mode uses it to fund depositors.
func (l *Ledger) Credit(account string, coin sdk.Coin) error {
	if err := validateCoin(coin); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(account, coin)
	return nil
}

// Balance returns the units of denom held by account.
func (l *Ledger) Balance(account, denom string) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account, denom)
}

// FailNext makes the next call of op return err. Calls queue up in order.
func (l *Ledger) FailNext(op LedgerOp, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = append(l.failures[op], err)
}

// Calls returns how many times op was invoked, including failed calls.
func (l *Ledger) Calls(op LedgerOp) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(_ context.Context, from, to string, amount sdk.Coin) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(OpTransfer); err != nil {
		return err
	}
	if err := validateCoin(amount); err != nil {
		return err
	}
	if from == "" || to == "" {
		return errorsmod.Wrap(ErrLedger, "transfer needs both accounts")
	}
	if err := l.sub(from, amount); err != nil {
		return err
	}
	l.add(to, amount)
	return nil
}

// Mint creates amount of a claim denom in account to.
func (l *Ledger) Mint(_ context.Context, to string, amount sdk.Coin) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(OpMint); err != nil {
		return err
	}
	if err := validateCoin(amount); err != nil {
		return err
	}
	l.add(to, amount)
	l.supply[amount.Denom] = l.supplyOf(amount.Denom).Add(amount.Amount)
	return nil
}

// Burn destroys amount held by account from.
func (l *Ledger) Burn(_ context.Context, from string, amount sdk.Coin) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(OpBurn); err != nil {
		return err
	}
	if err := validateCoin(amount); err != nil {
		return err
	}
	if err := l.sub(from, amount); err != nil {
		return err
	}
	l.supply[amount.Denom] = l.supplyOf(amount.Denom).Sub(amount.Amount)
	return nil
}

// Supply returns the outstanding amount of denom.
func (l *Ledger) Supply(_ context.Context, denom string) (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(OpSupply); err != nil {
		return sdkmath.Int{}, err
	}
	return l.supplyOf(denom), nil
}

func (l *Ledger) begin(op LedgerOp) error {
	l.calls[op]++
	queued := l.failures[op]
	if len(queued) == 0 {
		return nil
	}
	l.failures[op] = queued[1:]
	return queued[0]
}

func (l *Ledger) balance(account, denom string) sdkmath.Int {
	if amount, ok := l.balances[account][denom]; ok {
		return amount
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) supplyOf(denom string) sdkmath.Int {
	if amount, ok := l.supply[denom]; ok {
		return amount
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) add(account string, coin sdk.Coin) {
	if l.balances[account] == nil {
		l.balances[account] = make(map[string]sdkmath.Int)
	}
	l.balances[account][coin.Denom] = l.balance(account, coin.Denom).Add(coin.Amount)
}

func (l *Ledger) sub(account string, coin sdk.Coin) error {
	held := l.balance(account, coin.Denom)
	if held.LT(coin.Amount) {
		return errorsmod.Wrapf(ErrLedger, "account %s holds %s, needs %s", account, sdk.NewCoin(coin.Denom, held), coin)
	}
	l.balances[account][coin.Denom] = held.Sub(coin.Amount)
	return nil
}

func validateCoin(coin sdk.Coin) error {
	if err := coin.Validate(); err != nil {
		return errorsmod.Wrap(ErrLedger, err.Error())
	}
	if !coin.IsPositive() {
		return errorsmod.Wrapf(ErrLedger, "amount must be positive, got %s", coin)
	}
	return nil
}
