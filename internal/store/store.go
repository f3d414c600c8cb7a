// Package store persists signals, positions, backtest results and the
// runtime settings singleton in DuckDB. All status transitions go
// through compare-and-set updates so concurrent resolvers cannot race a
// row past its lifecycle.
package store

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// Store is the durable state layer shared by the lifecycle, executor,
// monitor and backtest runner.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewStore opens a DuckDB database at path. Use ":memory:" for an
// ephemeral store.
func NewStore(path string, logger *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open database", err)
	}

	return &Store{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the tables.
func (s *Store) Initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			symbol TEXT,
			side TEXT,
			price DOUBLE,
			confirmations TEXT,
			indicators TEXT,
			strategy TEXT,
			status TEXT,
			created_at TIMESTAMP,
			executed_at TIMESTAMP,
			exec_result TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			signal_id TEXT,
			symbol TEXT,
			side TEXT,
			entry DOUBLE,
			size_usd DOUBLE,
			leverage DOUBLE,
			sl DOUBLE,
			tp DOUBLE,
			status TEXT,
			mode TEXT,
			opened_at TIMESTAMP,
			closed_at TIMESTAMP,
			close_price DOUBLE,
			pnl_usd DOUBLE,
			close_reason TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_results (
			id TEXT PRIMARY KEY,
			job_name TEXT,
			symbol TEXT,
			timeframe TEXT,
			strategy TEXT,
			params TEXT,
			initial_capital DOUBLE,
			summary TEXT,
			trades TEXT,
			equity TEXT,
			status TEXT,
			logs TEXT,
			error TEXT,
			created_at TIMESTAMP,
			finished_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY,
			auto_trade BOOLEAN,
			active_strategy TEXT,
			leverage DOUBLE,
			sl_percent DOUBLE,
			risk_reward DOUBLE,
			last_updated TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create table", err)
		}
	}

	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
