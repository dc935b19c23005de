/*

This file contains the selection of the best protocol from a set of oracle quotes.

Ranking is by yield, highest first. Equal yields are ordered by protocol id, lexicographically smallest
first, so the same input always selects the same protocol regardless of the order the oracle returned it in.

*/

package analyzer

import (
	"errors"
	"sort"

	"github.com/elys-network/yvm/internal/logger"
	"github.com/elys-network/yvm/internal/types"
)

var yieldSelectorLogger = logger.GetForComponent("yield_selector")
var ErrNoQuotes = errors.New("no yield quotes provided for selection")

// RankQuotes returns a copy of quotes ordered best first.
func RankQuotes(quotes []types.YieldQuote) []types.YieldQuote {
	ranked := make([]types.YieldQuote, len(quotes))
	copy(ranked, quotes)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].YieldBps != ranked[j].YieldBps {
			return ranked[i].YieldBps > ranked[j].YieldBps
		}
		return ranked[i].Protocol < ranked[j].Protocol
	})
	return ranked
}

// SelectBestYield returns the quote with the highest yield, breaking ties by the smallest protocol id.
func SelectBestYield(quotes []types.YieldQuote) (types.YieldQuote, error) {
	if len(quotes) == 0 {
		yieldSelectorLogger.Error().Msg("Input quotes slice is empty")
		return types.YieldQuote{}, ErrNoQuotes
	}

	ranked := RankQuotes(quotes)
	for i, q := range ranked {
		yieldSelectorLogger.Debug().
			Int("rank", i+1).
			Str("protocol", q.Protocol.String()).
			Uint64("yieldBps", q.YieldBps).
			Msg("Ranked protocol")
	}

	return ranked[0], nil
}
