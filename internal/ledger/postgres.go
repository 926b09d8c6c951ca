package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver
)

// PostgresConfig mirrors the teacher's internal/infrastructure/db.Config
// shape (DSN plus pool tuning), narrowed to what the ledger needs.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultPostgresConfig mirrors the teacher's DefaultConfig defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute}
}

// OpenPostgres connects, applies the pool settings, runs the schema
// migration, and returns a Ledger backed by Postgres — the production
// path for a multi-node deployment (§5: a shared store every node reads
// and writes through).
func OpenPostgres(cfg PostgresConfig) (Ledger, *sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, nil, fmt.Errorf("ledger: postgres DSN is required")
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ledger: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ledger: migrate postgres schema: %w", err)
	}
	return newSQLStore(db), db, nil
}

// ensure SQLStore satisfies Ledger; keeps the package honest if the
// interface grows a method the store forgets to implement.
var _ Ledger = (*SQLStore)(nil)
