package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/yvm/internal/state"
)

// ModePaper runs the vault against the in-memory ledger. It is the only runnable mode.
const ModePaper = "paper"

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultID is the identity of the vault this YVM instance manages.
	VaultID string
	// VaultAccount is the custody account holding the pooled base asset.
	VaultAccount string
	// BaseDenom is the deposited asset.
	BaseDenom string
	// ClaimDenom is the claim token minted to depositors.
	ClaimDenom string
	// FeeCollector receives reallocation fees. Empty selects the haircut policy.
	FeeCollector string
	// Mode selects the collaborators the vault runs against.
	Mode string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFile, when set, receives a JSON copy of every log line.
	LogFile string

	// Database holds the connection settings for internal/state.
	Database state.DBConfig
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultID, err = getEnv("YVM_VAULT_ID")
	if err != nil {
		return err
	}

	VaultAccount, err = getEnv("YVM_VAULT_ACCOUNT")
	if err != nil {
		return err
	}

	BaseDenom, err = getEnv("YVM_BASE_DENOM")
	if err != nil {
		return err
	}

	ClaimDenom, err = getEnv("YVM_CLAIM_DENOM")
	if err != nil {
		return err
	}

	FeeCollector = getEnvOrDefault("YVM_FEE_COLLECTOR", "")
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFile = getEnvOrDefault("LOG_FILE", "")

	Mode = getEnvOrDefault("YVM_MODE", ModePaper)
	if Mode != ModePaper {
		return fmt.Errorf("YVM_MODE %q is not supported, only %q can run", Mode, ModePaper)
	}

	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultID", VaultID).
		Str("BaseDenom", BaseDenom).
		Str("ClaimDenom", ClaimDenom).
		Str("Mode", Mode).
		Str("DBDriver", string(Database.Driver)).
		Msg("Configuration loaded successfully.")

	return nil
}

func loadDatabaseConfig() error {
	Database = state.DBConfig{Driver: state.Dialect(getEnvOrDefault("DB_DRIVER", string(state.DialectPostgres)))}

	switch Database.Driver {
	case state.DialectSQLite:
		Database.Path = getEnvOrDefault("DB_PATH", "yvm.db")
		// Expand the tilde (~) in the database path to the user's home directory.
		if strings.HasPrefix(Database.Path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			Database.Path = filepath.Join(home, Database.Path[2:])
		}
		return nil
	case state.DialectPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", state.DialectPostgres, state.DialectSQLite, Database.Driver)
	}

	var err error
	if Database.Host, err = getEnv("DB_HOST"); err != nil {
		return err
	}
	if Database.User, err = getEnv("DB_USER"); err != nil {
		return err
	}
	if Database.Password, err = getEnv("DB_PASSWORD"); err != nil {
		return err
	}
	if Database.DBName, err = getEnv("DB_NAME"); err != nil {
		return err
	}
	port, err := getEnvAsUint64OrDefault("DB_PORT", 5432)
	if err != nil {
		return err
	}
	Database.Port = int(port)
	Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves an optional string environment variable.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// getEnvAsUint64OrDefault retrieves an optional environment variable as a uint64.
func getEnvAsUint64OrDefault(key string, fallback uint64) (uint64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
