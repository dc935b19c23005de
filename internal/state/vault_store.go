// ./internal/state/vault_store.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yvm/internal/types"
)

// CreateVaultState inserts the initial record for a vault. It fails with ErrAlreadyInitialized
// when the vault already exists, including when another process wins a concurrent insert.
func (s *Store) CreateVaultState(ctx context.Context, st types.VaultState) (types.VaultState, error) {
	if err := st.Validate(); err != nil {
		return types.VaultState{}, errorsmod.Wrap(types.ErrInconsistentState, err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.VaultState{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	st.Version = 1
	insert := `
		INSERT INTO vault_state (
			vault_id, total_deposits, last_yield_check, current_best_yield,
			current_best_protocol, version, initialized_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vault_id) DO NOTHING;`
	result, err := tx.ExecContext(ctx, s.rebind(insert),
		st.VaultID, st.TotalDeposits.String(), st.LastYieldCheck, int64(st.CurrentBestYield),
		string(st.CurrentBestProtocol), int64(st.Version), st.InitializedAt,
	)
	if err != nil {
		return types.VaultState{}, fmt.Errorf("failed to insert vault state: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return types.VaultState{}, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return types.VaultState{}, errorsmod.Wrapf(types.ErrAlreadyInitialized, "vault %s", st.VaultID)
	}

	counter := `INSERT INTO check_counter (vault_id, current_cycle) VALUES (?, 0) ON CONFLICT (vault_id) DO NOTHING;`
	if _, err := tx.ExecContext(ctx, s.rebind(counter), st.VaultID); err != nil {
		return types.VaultState{}, fmt.Errorf("failed to insert check counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.VaultState{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().Str("vault", st.VaultID).Msg("Vault state created")
	return st, nil
}

// LoadVaultState reads the record for vaultID. found is false when the vault was never initialized.
func (s *Store) LoadVaultState(ctx context.Context, vaultID string) (st types.VaultState, found bool, err error) {
	query := `
		SELECT vault_id, total_deposits, last_yield_check, current_best_yield,
			current_best_protocol, version, initialized_at
		FROM vault_state
		WHERE vault_id = ?;`

	var (
		totalDeposits string
		bestYield     int64
		protocol      string
		version       int64
	)
	err = s.db.QueryRowContext(ctx, s.rebind(query), vaultID).Scan(
		&st.VaultID, &totalDeposits, &st.LastYieldCheck, &bestYield,
		&protocol, &version, &st.InitializedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.VaultState{}, false, nil
	}
	if err != nil {
		return types.VaultState{}, false, fmt.Errorf("failed to load vault state for %s: %w", vaultID, err)
	}

	deposits, ok := sdkmath.NewIntFromString(totalDeposits)
	if !ok {
		return types.VaultState{}, false, errorsmod.Wrapf(types.ErrInconsistentState, "stored total deposits %q is not an integer", totalDeposits)
	}
	st.TotalDeposits = deposits
	st.CurrentBestYield = uint64(bestYield)
	st.CurrentBestProtocol = types.ProtocolID(protocol)
	st.Version = uint64(version)

	if err := st.Validate(); err != nil {
		return types.VaultState{}, false, errorsmod.Wrap(types.ErrInconsistentState, err.Error())
	}
	return st, true, nil
}

// SaveVaultState writes next over the stored record, provided the stored version still equals
// next.Version, and appends event in the same transaction when it is not nil. The returned state
// carries the bumped version and the event its assigned id.
func (s *Store) SaveVaultState(ctx context.Context, next types.VaultState, event *types.RebalanceEvent) (types.VaultState, error) {
	if err := next.Validate(); err != nil {
		return types.VaultState{}, errorsmod.Wrap(types.ErrInconsistentState, err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.VaultState{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	update := `
		UPDATE vault_state
		SET total_deposits = ?, last_yield_check = ?, current_best_yield = ?,
			current_best_protocol = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE vault_id = ? AND version = ?;`
	result, err := tx.ExecContext(ctx, s.rebind(update),
		next.TotalDeposits.String(), next.LastYieldCheck, int64(next.CurrentBestYield),
		string(next.CurrentBestProtocol), next.VaultID, int64(next.Version),
	)
	if err != nil {
		return types.VaultState{}, fmt.Errorf("failed to update vault state: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return types.VaultState{}, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return types.VaultState{}, errorsmod.Wrapf(types.ErrConcurrentUpdate, "vault %s at version %d", next.VaultID, next.Version)
	}

	var eventID int64
	if event != nil {
		eventID, err = s.insertRebalanceEvent(ctx, tx, *event)
		if err != nil {
			return types.VaultState{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.VaultState{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	if event != nil {
		event.EventID = eventID
	}

	next.Version++
	log.Debug().
		Str("vault", next.VaultID).
		Uint64("version", next.Version).
		Str("totalDeposits", next.TotalDeposits.String()).
		Msg("Vault state saved")
	return next, nil
}
