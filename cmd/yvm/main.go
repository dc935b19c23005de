package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/elys-network/yvm/internal/config"
	"github.com/elys-network/yvm/internal/datafetcher"
	"github.com/elys-network/yvm/internal/logger"
	"github.com/elys-network/yvm/internal/manager"
	"github.com/elys-network/yvm/internal/monitor"
	"github.com/elys-network/yvm/internal/state"
	"github.com/elys-network/yvm/internal/types"
	"github.com/elys-network/yvm/internal/vault"
	"github.com/elys-network/yvm/internal/web"
)

// main is the entry point for the YVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if config.LogFile != "" {
		fileWriter, err := logger.FileWriter(config.LogFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", config.LogFile).Msg("Failed to open log file")
		}
		logger.InitializeWithWriter(config.LogLevel, zerolog.MultiLevelWriter(logger.ConsoleWriter(), fileWriter))
	} else {
		logger.Initialize(config.LogLevel)
	}
	log.Info().Msg("YVM Core Logic Starting...")

	store, err := state.InitDB(config.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()
	if err := store.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}
	log.Info().Str("dialect", string(store.Dialect())).Msg("Database schema ready")

	// --- 2. Collaborators (paper mode only) ---
	log.Warn().Msg("Initializing YVM in PAPER mode. Balances live in memory and reset on restart.")
	ledger := vault.NewLedger()

	var oracle monitor.Oracle
	if config.YieldAPI != "" {
		httpOracle, err := datafetcher.NewHTTPOracle(config.YieldAPI)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create yield feed client")
		}
		oracle = httpOracle
		log.Info().Str("url", config.YieldAPI).Msg("Using HTTP yield feed")
	} else {
		oracle = datafetcher.NewStaticOracle(nil)
		log.Info().Msg("YIELD_API not set, using the static yield table")
	}

	params := config.VaultParameters()
	v, err := vault.New(vault.Config{
		VaultID:      config.VaultID,
		VaultAccount: config.VaultAccount,
		BaseDenom:    config.BaseDenom,
		ClaimDenom:   config.ClaimDenom,
		Params:       params,
		Store:        store,
		Custody:      ledger,
		Issuer:       ledger,
		Oracle:       oracle,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := v.Initialize(ctx); err != nil {
		if !errors.Is(err, types.ErrAlreadyInitialized) {
			log.Fatal().Err(err).Msg("Failed to initialize vault")
		}
		log.Info().Str("vault", config.VaultID).Msg("Vault already initialized, resuming")
	}
	if err := checkPaperPeg(ctx, v); err != nil {
		log.Fatal().Err(err).Msg("Persisted deposits cannot be backed by an empty paper ledger")
	}

	// Record the parameters this process runs with
	if err := recordParameters(ctx, store, params); err != nil {
		log.Fatal().Err(err).Msg("Failed to save vault parameters")
	}
	log.Info().Msg("Vault parameters recorded successfully.")

	// --- 3. Create Manager Instance with Dependency Injection ---
	m, err := manager.NewManager(manager.Config{Checker: v, Counter: store})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create manager")
	}

	faucet := func(account string, amount sdkmath.Int) error {
		return ledger.Credit(account, sdk.NewCoin(config.BaseDenom, amount))
	}
	webPort := strconv.Itoa(int(config.WebPort))
	webServer := web.NewWebServer(webPort, v, store, faucet)

	// --- 4. Run web server and main loop until a signal arrives ---
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting YVM web API")
		return webServer.Start(gctx)
	})
	g.Go(func() error {
		log.Info().Str("interval", params.LoopInterval.String()).Msg("Starting YVM main loop")
		m.RunLoop(gctx, params.LoopInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("YVM stopped with an error")
		return
	}
	log.Info().Msg("YVM stopped")
}

// recordParameters saves params as the active version unless they already are.
func recordParameters(ctx context.Context, store *state.Store, params types.VaultParameters) error {
	active, err := store.GetActiveVaultParameters(ctx, config.VaultID)
	switch {
	case err == nil && active.Parameters == params:
		log.Info().Int("version", active.Version).Msg("Active vault parameters unchanged")
		return nil
	case err != nil && !errors.Is(err, types.ErrNotInitialized):
		return err
	case err != nil:
		log.Warn().Msg("No active vault parameters found, saving the loaded configuration.")
	}
	_, err = store.SaveVaultParameters(ctx, config.VaultID, params, true)
	return err
}

// checkPaperPeg refuses to resume a vault whose persisted deposits would have no claim tokens in a
// fresh in-memory ledger.
func checkPaperPeg(ctx context.Context, v *vault.Vault) error {
	snap, err := v.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.PegHolds() {
		return errors.New("vault holds " + snap.State.TotalDeposits.String() + " units but the ledger has no claim supply; run scripts/reset_db.go")
	}
	return nil
}
