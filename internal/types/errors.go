package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace for every fault raised by the vault manager.
const Codespace = "yvm"

// Fault taxonomy. Every fatal condition aborts the operation with no persisted mutation.
var (
	// ErrArithmetic covers overflow in the mint ratio product, division by a zero supply and
	// underflow on withdrawal or fee subtraction.
	ErrArithmetic = errorsmod.Register(Codespace, 2, "arithmetic fault")
	// ErrInconsistentState is raised when claim supply and pooled deposits disagree about whether the vault is empty.
	ErrInconsistentState = errorsmod.Register(Codespace, 3, "inconsistent vault state")
	// ErrNoYieldData is raised when the oracle returns no usable quotes.
	ErrNoYieldData = errorsmod.Register(Codespace, 4, "no yield data")
	// ErrCollaborator is raised when custody or token issuance fails.
	ErrCollaborator = errorsmod.Register(Codespace, 5, "collaborator failure")

	ErrInvalidAmount      = errorsmod.Register(Codespace, 6, "invalid amount")
	ErrNotInitialized     = errorsmod.Register(Codespace, 7, "vault not initialized")
	ErrAlreadyInitialized = errorsmod.Register(Codespace, 8, "vault already initialized")
	ErrConcurrentUpdate   = errorsmod.Register(Codespace, 9, "vault state changed concurrently")
	ErrInvalidProtocol    = errorsmod.Register(Codespace, 10, "invalid protocol identifier")
)
