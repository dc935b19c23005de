// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Embedded SQLite driver for paper mode and tests
)

// Dialect selects the SQL flavour spoken by the store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Driver   Dialect // "postgres" (default) or "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
	Path     string // SQLite file path or ":memory:"
}

// Store persists vault state, the rebalance audit trail, vault parameters and the check counter.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// InitDB opens the database connection pool described by cfg and verifies it.
func InitDB(cfg DBConfig) (*Store, error) {
	dialect := cfg.Driver
	if dialect == "" {
		dialect = DialectPostgres
	}

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		db, err = sql.Open("postgres", psqlInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	case DialectSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		db, err = sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// SQLite allows a single writer; an in-memory database exists per connection.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dialect)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("driver", string(dialect)).Msg("Successfully connected to the database!")
	return NewStore(db, dialect), nil
}

// NewStore wraps an already opened database.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Dialect returns the SQL flavour of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection pool.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	log.Info().Msg("Closing database connection...")
	if err := s.db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	}
}

// rebind rewrites ? placeholders into $n for PostgreSQL. Queries never carry a literal '?'.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS vault_state (
		vault_id VARCHAR(128) PRIMARY KEY,
		total_deposits NUMERIC(20, 0) NOT NULL CHECK (total_deposits >= 0),
		last_yield_check BIGINT NOT NULL,
		current_best_yield BIGINT NOT NULL DEFAULT 0 CHECK (current_best_yield >= 0),
		current_best_protocol VARCHAR(64) NOT NULL DEFAULT 'none',
		version BIGINT NOT NULL DEFAULT 0,
		initialized_at BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rebalance_events (
		event_id SERIAL PRIMARY KEY,
		vault_id VARCHAR(128) NOT NULL REFERENCES vault_state(vault_id),
		event_timestamp BIGINT NOT NULL,
		protocol VARCHAR(64) NOT NULL,
		previous_protocol VARCHAR(64) NOT NULL,
		yield_bps BIGINT NOT NULL,
		fee NUMERIC(20, 0) NOT NULL,
		fee_recipient VARCHAR(128) NOT NULL DEFAULT '',
		total_balance_after_fee NUMERIC(20, 0) NOT NULL,
		cycle_id VARCHAR(64) NOT NULL DEFAULT '',
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_rebalance_events_vault_timestamp ON rebalance_events(vault_id, event_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_rebalance_events_protocol ON rebalance_events(protocol);

	CREATE TABLE IF NOT EXISTS check_counter (
		vault_id VARCHAR(128) PRIMARY KEY,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS vault_parameters (
		params_id SERIAL PRIMARY KEY,
		vault_id VARCHAR(128) NOT NULL,
		version INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		activated_at BIGINT NOT NULL,
		cooldown_seconds BIGINT NOT NULL,
		fee_divisor NUMERIC(20, 0) NOT NULL,
		fee_policy VARCHAR(16) NOT NULL,
		fee_collector VARCHAR(128) NOT NULL DEFAULT '',
		max_yield_bps NUMERIC(20, 0) NOT NULL,
		min_deposit NUMERIC(20, 0) NOT NULL,
		loop_interval_ms BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (vault_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_vault_parameters_active ON vault_parameters(vault_id, is_active);
`

// Amounts are TEXT in SQLite: its NUMERIC affinity would round values above int64.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS vault_state (
		vault_id TEXT PRIMARY KEY,
		total_deposits TEXT NOT NULL,
		last_yield_check INTEGER NOT NULL,
		current_best_yield INTEGER NOT NULL DEFAULT 0 CHECK (current_best_yield >= 0),
		current_best_protocol TEXT NOT NULL DEFAULT 'none',
		version INTEGER NOT NULL DEFAULT 0,
		initialized_at INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rebalance_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		vault_id TEXT NOT NULL REFERENCES vault_state(vault_id),
		event_timestamp INTEGER NOT NULL,
		protocol TEXT NOT NULL,
		previous_protocol TEXT NOT NULL,
		yield_bps INTEGER NOT NULL,
		fee TEXT NOT NULL,
		fee_recipient TEXT NOT NULL DEFAULT '',
		total_balance_after_fee TEXT NOT NULL,
		cycle_id TEXT NOT NULL DEFAULT '',
		recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_rebalance_events_vault_timestamp ON rebalance_events(vault_id, event_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_rebalance_events_protocol ON rebalance_events(protocol);

	CREATE TABLE IF NOT EXISTS check_counter (
		vault_id TEXT PRIMARY KEY,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS vault_parameters (
		params_id INTEGER PRIMARY KEY AUTOINCREMENT,
		vault_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 0,
		activated_at INTEGER NOT NULL,
		cooldown_seconds INTEGER NOT NULL,
		fee_divisor TEXT NOT NULL,
		fee_policy TEXT NOT NULL,
		fee_collector TEXT NOT NULL DEFAULT '',
		max_yield_bps TEXT NOT NULL,
		min_deposit TEXT NOT NULL,
		loop_interval_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (vault_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_vault_parameters_active ON vault_parameters(vault_id, is_active);
`

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func (s *Store) EnsureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := postgresSchema
	if s.dialect == DialectSQLite {
		schemaSQL = sqliteSchema
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Str("driver", string(s.dialect)).Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every table owned by the store.
func (s *Store) DropSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	// SQLite has no CASCADE; drop children first.
	for _, table := range []string{"rebalance_events", "check_counter", "vault_parameters", "vault_state"} {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	log.Warn().Msg("Dropped all vault tables")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func (s *Store) TestDBConnection(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
