// ./internal/state/event_store.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yvm/internal/types"
)

const eventColumns = `
	event_id, vault_id, event_timestamp, protocol, previous_protocol, yield_bps,
	fee, fee_recipient, total_balance_after_fee, cycle_id`

// insertRebalanceEvent appends an audit record inside tx and returns its id.
func (s *Store) insertRebalanceEvent(ctx context.Context, tx *sql.Tx, event types.RebalanceEvent) (int64, error) {
	query := `
		INSERT INTO rebalance_events (
			vault_id, event_timestamp, protocol, previous_protocol, yield_bps,
			fee, fee_recipient, total_balance_after_fee, cycle_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING event_id;`

	var eventID int64
	err := tx.QueryRowContext(ctx, s.rebind(query),
		event.VaultID, event.Timestamp, string(event.Protocol), string(event.PreviousProtocol), int64(event.YieldBps),
		event.Fee.String(), event.FeeRecipient, event.TotalBalanceAfterFee.String(), event.CycleID,
	).Scan(&eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to save rebalance event: %w", err)
	}

	log.Info().
		Int64("event_id", eventID).
		Str("vault", event.VaultID).
		Str("protocol", event.Protocol.String()).
		Uint64("yield_bps", event.YieldBps).
		Str("total_balance", event.TotalBalanceAfterFee.String()).
		Msg("Rebalance event saved to database")
	return eventID, nil
}

// GetRecentRebalanceEvents returns the newest events for vaultID, newest first.
func (s *Store) GetRecentRebalanceEvents(ctx context.Context, vaultID string, limit int) ([]types.RebalanceEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `SELECT ` + eventColumns + `
		FROM rebalance_events
		WHERE vault_id = ?
		ORDER BY event_id DESC
		LIMIT ?;`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), vaultID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent rebalance events")
		return nil, fmt.Errorf("failed to query recent rebalance events: %w", err)
	}
	return scanEvents(rows)
}

// GetRebalanceEventsByProtocol returns the events for vaultID that moved funds into any of protocols.
func (s *Store) GetRebalanceEventsByProtocol(ctx context.Context, vaultID string, protocols []types.ProtocolID) ([]types.RebalanceEvent, error) {
	if len(protocols) == 0 {
		return nil, nil
	}
	names := make([]string, len(protocols))
	for i, p := range protocols {
		names[i] = string(p)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if s.dialect == DialectPostgres {
		query := `SELECT ` + eventColumns + `
			FROM rebalance_events
			WHERE vault_id = $1 AND protocol = ANY($2)
			ORDER BY event_id DESC;`
		rows, err = s.db.QueryContext(ctx, query, vaultID, pq.Array(names))
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
		query := `SELECT ` + eventColumns + `
			FROM rebalance_events
			WHERE vault_id = ? AND protocol IN (` + placeholders + `)
			ORDER BY event_id DESC;`
		args := make([]any, 0, len(names)+1)
		args = append(args, vaultID)
		for _, n := range names {
			args = append(args, n)
		}
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance events by protocol: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]types.RebalanceEvent, error) {
	defer rows.Close()

	var events []types.RebalanceEvent
	for rows.Next() {
		var (
			ev                        types.RebalanceEvent
			protocol, previous        string
			yieldBps                  int64
			fee, totalBalanceAfterFee string
		)
		if err := rows.Scan(
			&ev.EventID, &ev.VaultID, &ev.Timestamp, &protocol, &previous, &yieldBps,
			&fee, &ev.FeeRecipient, &totalBalanceAfterFee, &ev.CycleID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance event row: %w", err)
		}

		feeInt, ok := sdkmath.NewIntFromString(fee)
		if !ok {
			return nil, errorsmod.Wrapf(types.ErrInconsistentState, "stored fee %q is not an integer", fee)
		}
		total, ok := sdkmath.NewIntFromString(totalBalanceAfterFee)
		if !ok {
			return nil, errorsmod.Wrapf(types.ErrInconsistentState, "stored balance %q is not an integer", totalBalanceAfterFee)
		}
		ev.Protocol = types.ProtocolID(protocol)
		ev.PreviousProtocol = types.ProtocolID(previous)
		ev.YieldBps = uint64(yieldBps)
		ev.Fee = feeInt
		ev.TotalBalanceAfterFee = total
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return events, nil
}
