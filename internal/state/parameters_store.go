// ./internal/state/parameters_store.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yvm/internal/types"
)

// StoredVaultParameters is one saved version of a vault's parameters.
type StoredVaultParameters struct {
	ParamsID    int64                 `json:"params_id"`
	VaultID     string                `json:"vault_id"`
	Version     int                   `json:"version"`
	Active      bool                  `json:"is_active"`
	ActivatedAt int64                 `json:"activated_at"`
	Parameters  types.VaultParameters `json:"parameters"`
}

// SaveVaultParameters saves params as the next version for vaultID. With makeActive the previously
// active version is deactivated in the same transaction.
func (s *Store) SaveVaultParameters(ctx context.Context, vaultID string, params types.VaultParameters, makeActive bool) (*StoredVaultParameters, error) {
	if vaultID == "" {
		return nil, fmt.Errorf("vault id cannot be empty")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save invalid parameters: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var latest int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT COALESCE(MAX(version), 0) FROM vault_parameters WHERE vault_id = ?;`), vaultID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest parameters version for %s: %w", vaultID, err)
	}

	if makeActive {
		deactivate := `UPDATE vault_parameters SET is_active = FALSE WHERE vault_id = ? AND is_active = TRUE;`
		if _, err := tx.ExecContext(ctx, s.rebind(deactivate), vaultID); err != nil {
			return nil, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", vaultID, err)
		}
	}

	stored := &StoredVaultParameters{
		VaultID:     vaultID,
		Version:     latest + 1,
		Active:      makeActive,
		ActivatedAt: time.Now().Unix(),
		Parameters:  params,
	}
	insert := `
		INSERT INTO vault_parameters (
			vault_id, version, is_active, activated_at,
			cooldown_seconds, fee_divisor, fee_policy, fee_collector,
			max_yield_bps, min_deposit, loop_interval_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING params_id;`
	err = tx.QueryRowContext(ctx, s.rebind(insert),
		vaultID, stored.Version, makeActive, stored.ActivatedAt,
		params.CooldownSeconds, strconv.FormatUint(params.FeeDivisor, 10), string(params.FeePolicy), params.FeeCollector,
		strconv.FormatUint(params.MaxYieldBps, 10), strconv.FormatUint(params.MinDeposit, 10), params.LoopInterval.Milliseconds(),
	).Scan(&stored.ParamsID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert vault parameters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", stored.Version).
		Str("vault", vaultID).
		Int64("params_id", stored.ParamsID).
		Bool("active", makeActive).
		Msg("Saved vault parameters")
	return stored, nil
}

// GetActiveVaultParameters loads the active parameters of vaultID. It fails with ErrNotInitialized
// when none were ever activated.
func (s *Store) GetActiveVaultParameters(ctx context.Context, vaultID string) (*StoredVaultParameters, error) {
	query := `
		SELECT params_id, vault_id, version, is_active, activated_at,
			cooldown_seconds, fee_divisor, fee_policy, fee_collector,
			max_yield_bps, min_deposit, loop_interval_ms
		FROM vault_parameters
		WHERE vault_id = ? AND is_active = TRUE
		ORDER BY version DESC
		LIMIT 1;`

	var (
		p            StoredVaultParameters
		feeDivisor   string
		feePolicy    string
		maxYieldBps  string
		minDeposit   string
		loopInterval int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(query), vaultID).Scan(
		&p.ParamsID, &p.VaultID, &p.Version, &p.Active, &p.ActivatedAt,
		&p.Parameters.CooldownSeconds, &feeDivisor, &feePolicy, &p.Parameters.FeeCollector,
		&maxYieldBps, &minDeposit, &loopInterval,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errorsmod.Wrapf(types.ErrNotInitialized, "no active parameters for vault %s", vaultID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan active parameters for vault %s: %w", vaultID, err)
	}

	for _, field := range []struct {
		name string
		raw  string
		dst  *uint64
	}{
		{"fee_divisor", feeDivisor, &p.Parameters.FeeDivisor},
		{"max_yield_bps", maxYieldBps, &p.Parameters.MaxYieldBps},
		{"min_deposit", minDeposit, &p.Parameters.MinDeposit},
	} {
		v, err := strconv.ParseUint(field.raw, 10, 64)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrInconsistentState, "stored %s %q: %s", field.name, field.raw, err)
		}
		*field.dst = v
	}
	p.Parameters.FeePolicy = types.FeePolicy(feePolicy)
	p.Parameters.LoopInterval = time.Duration(loopInterval) * time.Millisecond

	log.Debug().Str("vault", vaultID).Int("version", p.Version).Msg("Loaded active vault parameters")
	return &p, nil
}
