/*
This file contains the fixed yield table used in paper mode and whenever no yield API is configured.
*/

package datafetcher

import (
	"context"

	"github.com/elys-network/yvm/internal/types"
)

// DefaultStaticYields is the table served by NewStaticOracle when none is given.
var DefaultStaticYields = map[types.ProtocolID]uint64{
	types.ProtocolA: 500,
	types.ProtocolB: 550,
	types.ProtocolC: 480,
}

// StaticOracle always returns the same yields.
type StaticOracle struct {
	yields map[types.ProtocolID]uint64
}

// NewStaticOracle returns an oracle serving yields, or DefaultStaticYields when yields is nil.
func NewStaticOracle(yields map[types.ProtocolID]uint64) *StaticOracle {
	if yields == nil {
		yields = DefaultStaticYields
	}
	copied := make(map[types.ProtocolID]uint64, len(yields))
	for protocol, bps := range yields {
		copied[protocol] = bps
	}
	return &StaticOracle{yields: copied}
}

// FetchYields returns a copy of the table so callers cannot mutate it.
func (o *StaticOracle) FetchYields(ctx context.Context) (map[types.ProtocolID]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[types.ProtocolID]uint64, len(o.yields))
	for protocol, bps := range o.yields {
		out[protocol] = bps
	}
	return out, nil
}
