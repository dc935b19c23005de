package types

import (
	"regexp"

	errorsmod "cosmossdk.io/errors"
)

// ProtocolID identifies an external yield protocol. It is a closed, validated identifier rather than
// free text so comparisons and the tie-break order are well defined.
type ProtocolID string

// NoProtocol is the sentinel stored before the first rebalance.
const NoProtocol ProtocolID = "none"

// Protocols served by the built-in static feed.
const (
	ProtocolA ProtocolID = "ProtocolA"
	ProtocolB ProtocolID = "ProtocolB"
	ProtocolC ProtocolID = "ProtocolC"
)

var protocolIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]{0,63}$`)

// Validate rejects identifiers outside the accepted alphabet.
func (p ProtocolID) Validate() error {
	if !protocolIDPattern.MatchString(string(p)) {
		return errorsmod.Wrapf(ErrInvalidProtocol, "%q", string(p))
	}
	return nil
}

// ValidateQuoted additionally rejects the sentinel, which can never be selected.
func (p ProtocolID) ValidateQuoted() error {
	if p == NoProtocol {
		return errorsmod.Wrapf(ErrInvalidProtocol, "%q is reserved", string(p))
	}
	return p.Validate()
}

func (p ProtocolID) String() string {
	return string(p)
}

// YieldQuote is a single oracle observation.
type YieldQuote struct {
	Protocol ProtocolID `json:"protocol"`
	YieldBps uint64     `json:"yield_bps"`
}
