package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/yvm/internal/logger"
	"github.com/elys-network/yvm/internal/types"
	"github.com/elys-network/yvm/internal/utils"
	"github.com/elys-network/yvm/internal/vault"
)

// Checker runs one yield check.
type Checker interface {
	ID() string
	CheckYields(ctx context.Context) (types.CheckResult, error)
}

// CycleCounter persists the number of cycles run for a vault.
type CycleCounter interface {
	IncrementCycleNumber(ctx context.Context, vaultID string) (int, error)
}

// Manager drives periodic yield checks for one vault.
type Manager struct {
	logger  zerolog.Logger
	checker Checker
	counter CycleCounter

	// Runtime state
	cycleCount int
}

// Config holds the dependencies of a Manager.
type Config struct {
	Checker Checker
	Counter CycleCounter
}

// NewManager creates a new Manager instance with dependency injection
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Checker == nil {
		return nil, fmt.Errorf("checker cannot be nil")
	}
	if cfg.Counter == nil {
		return nil, fmt.Errorf("cycle counter cannot be nil")
	}

	m := &Manager{
		logger:  logger.GetForComponent("yvm_core"),
		checker: cfg.Checker,
		counter: cfg.Counter,
	}
	m.logger.Info().Str("vault", cfg.Checker.ID()).Msg("Manager created")
	return m, nil
}

// RunLoop runs a cycle immediately and then once per interval until ctx is cancelled.
func (m *Manager) RunLoop(ctx context.Context, interval time.Duration) {
	m.logger.Info().
		Dur("interval", interval).
		Msg("Starting YVM main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	m.cycleCount++
	m.RunCycle(ctx)

	// Continue with ticker
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Int("cycles", m.cycleCount).Msg("YVM loop stopped due to context cancellation")
			return
		case <-ticker.C:
			m.cycleCount++
			m.RunCycle(ctx)
		}
	}
}

// RunCycle runs one yield check tagged with a fresh cycle id. Failures are logged, never fatal:
// the next tick simply tries again.
func (m *Manager) RunCycle(ctx context.Context) types.CheckResult {
	cycleStartTime := time.Now()

	// Generate unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := m.logger.With().Str("cycle_id", cycleID).Logger()

	cycleNumber, err := m.counter.IncrementCycleNumber(ctx, m.checker.ID())
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to increment cycle number")
	}
	cycleLogger.Debug().Int("cycleNumber", cycleNumber).Msg("--- Starting YVM Cycle ---")

	result, err := m.checker.CheckYields(vault.ContextWithCycleID(ctx, cycleID))
	duration := time.Since(cycleStartTime)

	switch {
	case errors.Is(err, types.ErrNoYieldData):
		cycleLogger.Warn().Err(err).Dur("duration", duration).Msg("Cycle completed without yield data")
	case err != nil:
		cycleLogger.Error().Err(err).Dur("duration", duration).Msg("Cycle aborted")
	case result.Outcome == types.OutcomeRebalanced:
		totalAfterFee, convErr := utils.SDKIntToUint64(result.Event.TotalBalanceAfterFee)
		if convErr != nil {
			cycleLogger.Error().Err(convErr).Msg("Rebalance event carries an out of range balance")
		}
		cycleLogger.Info().
			Int("cycleNumber", cycleNumber).
			Str("protocol", result.Event.Protocol.String()).
			Str("yield", utils.FormatBpsAsPercent(result.Event.YieldBps)).
			Str("fee", result.Event.Fee.String()).
			Uint64("totalAfterFee", totalAfterFee).
			Dur("duration", duration).
			Msg("Cycle rebalanced the vault")
	default:
		cycleLogger.Info().
			Int("cycleNumber", cycleNumber).
			Str("outcome", string(result.Outcome)).
			Dur("duration", duration).
			Msg("Cycle completed")
	}
	return result
}
