package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/elys-network/yvm/internal/logger"
	"github.com/elys-network/yvm/internal/rebalance"
	"github.com/elys-network/yvm/internal/state"
	"github.com/elys-network/yvm/internal/types"
	"github.com/elys-network/yvm/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// VaultService is the part of the vault the API drives.
type VaultService interface {
	ID() string
	Phase() rebalance.Phase
	Snapshot(ctx context.Context) (types.VaultSnapshot, error)
	Deposit(ctx context.Context, depositor string, amount sdkmath.Int) (sdkmath.Int, error)
	Withdraw(ctx context.Context, owner string, shares sdkmath.Int) (sdkmath.Int, error)
	CheckYields(ctx context.Context) (types.CheckResult, error)
}

// History is the read side of the store.
type History interface {
	GetRecentRebalanceEvents(ctx context.Context, vaultID string, limit int) ([]types.RebalanceEvent, error)
	GetRebalanceEventsByProtocol(ctx context.Context, vaultID string, protocols []types.ProtocolID) ([]types.RebalanceEvent, error)
	GetVaultSummary(ctx context.Context, vaultID string) (*state.VaultSummary, error)
	GetActiveVaultParameters(ctx context.Context, vaultID string) (*state.StoredVaultParameters, error)
	TestDBConnection(ctx context.Context) error
}

// Faucet credits base units to an account. Only paper mode provides one.
type Faucet func(account string, amount sdkmath.Int) error

// WebServer serves the vault API.
type WebServer struct {
	router  *mux.Router
	port    string
	vault   VaultService
	history History
	faucet  Faucet
	started time.Time
}

// NewWebServer creates a new web server instance. faucet may be nil.
func NewWebServer(port string, vault VaultService, history History, faucet Faucet) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		vault:   vault,
		history: history,
		faucet:  faucet,
		started: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")
	api.HandleFunc("/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/check", ws.handleCheck).Methods("POST")
	if ws.faucet != nil {
		api.HandleFunc("/faucet", ws.handleFaucet).Methods("POST")
	}

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		webLogger.Info().Msg("Shutting down web server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleHealth reports process and database health
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealthy := ws.history.TestDBConnection(r.Context()) == nil

	initialized := true
	if _, err := ws.vault.Snapshot(r.Context()); err != nil {
		initialized = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy || !initialized {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "yvm-yield-vault-manager",
			"version": "1.0.0",
		},
		"yvm_status": map[string]interface{}{
			"vault_id":          ws.vault.ID(),
			"database_healthy":  dbHealthy,
			"vault_initialized": initialized,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVault returns the vault state, claim supply and the value of one claim token
func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	snap, err := ws.vault.Snapshot(r.Context())
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"state":           snap.State,
		"claim_supply":    snap.ClaimSupply,
		"peg_holds":       snap.PegHolds(),
		"engine_phase":    ws.vault.Phase(),
		"current_yield":   utils.FormatBpsAsPercent(snap.State.CurrentBestYield),
		"next_check_from": snap.State.LastYieldCheck,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVaultSummary returns vault summary statistics
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.history.GetVaultSummary(r.Context(), ws.vault.ID())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get vault summary")
		ws.writeVaultError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetParameters returns the active vault parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	params, err := ws.history.GetActiveVaultParameters(r.Context(), ws.vault.ID())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get vault parameters")
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetEvents returns the rebalance audit trail, optionally filtered by protocol
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	var (
		events []types.RebalanceEvent
		err    error
	)
	if filter := r.URL.Query().Get("protocol"); filter != "" {
		var protocols []types.ProtocolID
		for _, p := range strings.Split(filter, ",") {
			protocol := types.ProtocolID(strings.TrimSpace(p))
			if err := protocol.Validate(); err != nil {
				ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid protocol filter")
				return
			}
			protocols = append(protocols, protocol)
		}
		events, err = ws.history.GetRebalanceEventsByProtocol(r.Context(), ws.vault.ID(), protocols)
		if len(events) > limit {
			events = events[:limit]
		}
	} else {
		events, err = ws.history.GetRecentRebalanceEvents(r.Context(), ws.vault.ID(), limit)
	}
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get rebalance events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// amountRequest is the body of deposit, withdraw and faucet calls. Amounts are decimal strings.
type amountRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (ws *WebServer) decodeAmountRequest(w http.ResponseWriter, r *http.Request) (string, sdkmath.Int, bool) {
	var req amountRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return "", sdkmath.Int{}, false
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount: "+err.Error())
		return "", sdkmath.Int{}, false
	}
	if strings.TrimSpace(req.Account) == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Account is required")
		return "", sdkmath.Int{}, false
	}
	return strings.TrimSpace(req.Account), amount, true
}

// handleDeposit deposits base units and returns the claim tokens minted
func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	account, amount, ok := ws.decodeAmountRequest(w, r)
	if !ok {
		return
	}

	shares, err := ws.vault.Deposit(r.Context(), account, amount)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"amount":  amount,
		"shares":  shares,
	})
}

// handleWithdraw burns claim tokens and returns the base units paid out
func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	account, shares, ok := ws.decodeAmountRequest(w, r)
	if !ok {
		return
	}

	amount, err := ws.vault.Withdraw(r.Context(), account, shares)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"shares":  shares,
		"amount":  amount,
	})
}

// handleCheck runs one yield check
func (ws *WebServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	result, err := ws.vault.CheckYields(r.Context())
	if err != nil && !errors.Is(err, types.ErrNoYieldData) {
		ws.writeVaultError(w, err)
		return
	}
	// No data still advanced the cooldown, so the call itself completed.
	ws.writeJSONResponse(w, http.StatusOK, result)
}

// handleFaucet credits paper funds to an account
func (ws *WebServer) handleFaucet(w http.ResponseWriter, r *http.Request) {
	account, amount, ok := ws.decodeAmountRequest(w, r)
	if !ok {
		return
	}
	if err := ws.faucet(account, amount); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"account": account, "credited": amount})
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// writeVaultError maps a vault fault onto a status code and reports its registered code
func (ws *WebServer) writeVaultError(w http.ResponseWriter, err error) {
	statusCode := statusFor(err)
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	if statusCode >= http.StatusInternalServerError {
		webLogger.Error().Err(err).Msg("Vault operation failed")
	}

	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   err.Error(),
		"codespace": codespace,
		"code":      code,
		"timestamp": time.Now().UTC(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotInitialized):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, types.ErrArithmetic), errors.Is(err, types.ErrInconsistentState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrCollaborator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
