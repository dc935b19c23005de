/*

This file manages the persistent check counter of each vault. Every tick of the run loop counts as one
cycle, whether or not the cooldown let the check through, so the counter survives restarts and gives
each logged cycle a stable number.

*/

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetCurrentCycleNumber retrieves the current cycle number of vaultID.
func (s *Store) GetCurrentCycleNumber(ctx context.Context, vaultID string) (int, error) {
	query := `SELECT current_cycle FROM check_counter WHERE vault_id = ?;`

	var currentCycle int
	err := s.db.QueryRowContext(ctx, s.rebind(query), vaultID).Scan(&currentCycle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("vault", vaultID).Msg("No check counter row found, reporting 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current cycle number: %w", err)
	}

	log.Debug().Int("currentCycle", currentCycle).Msg("Retrieved current cycle number")
	return currentCycle, nil
}

// IncrementCycleNumber increments the counter of vaultID and returns the new value.
func (s *Store) IncrementCycleNumber(ctx context.Context, vaultID string) (int, error) {
	updateQuery := `
		UPDATE check_counter
		SET current_cycle = current_cycle + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE vault_id = ?
		RETURNING current_cycle;`

	var newCycle int
	err := s.db.QueryRowContext(ctx, s.rebind(updateQuery), vaultID).Scan(&newCycle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("no check counter for vault %s, is it initialized?", vaultID)
		}
		return 0, fmt.Errorf("failed to increment cycle number: %w", err)
	}

	log.Debug().Int("newCycle", newCycle).Msg("Incremented cycle counter")
	return newCycle, nil
}

// ResetCycleNumber resets the counter to a specific value (for testing/maintenance)
func (s *Store) ResetCycleNumber(ctx context.Context, vaultID string, cycleNumber int) error {
	if cycleNumber < 0 {
		return fmt.Errorf("cycle number cannot be negative: %d", cycleNumber)
	}

	updateQuery := `
		UPDATE check_counter
		SET current_cycle = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE vault_id = ?;`

	result, err := s.db.ExecContext(ctx, s.rebind(updateQuery), cycleNumber, vaultID)
	if err != nil {
		return fmt.Errorf("failed to reset cycle number to %d: %w", cycleNumber, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting cycle number")
	}

	log.Warn().Int("cycleNumber", cycleNumber).Msg("Reset cycle counter")
	return nil
}
