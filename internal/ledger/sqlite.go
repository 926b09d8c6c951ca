package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver, no cgo
)

// OpenSQLite opens (creating if absent) an embedded, cgo-free sqlite
// ledger at path — the default dev/single-node backend, grounded on
// anasdox-workline's modernc.org/sqlite dev-database pattern
// (internal/db.Open): workspace directory ensured, foreign keys on,
// no external service required to run the Decision Engine locally.
func OpenSQLite(path string) (Ledger, *sqlx.DB, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("ledger: sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("ledger: ensure sqlite directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite serializes writers; one connection avoids SQLITE_BUSY

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ledger: ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ledger: migrate sqlite schema: %w", err)
	}
	return newSQLStore(db), db, nil
}
