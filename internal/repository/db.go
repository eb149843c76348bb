// Package repository persists receipts behind database/sql, with the
// sqlite driver for the default file-backed store and pgx stdlib for
// postgres deployments.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"receiptd/internal/common"
)

// Schema for the receipts tables. Item rows carry an explicit position so
// document order survives round-trips on both drivers.
const Schema = `
CREATE TABLE IF NOT EXISTS receipts (
	id TEXT PRIMARY KEY,
	store_name TEXT NOT NULL DEFAULT '',
	tx_date TEXT NOT NULL DEFAULT '',
	tx_time TEXT NOT NULL DEFAULT '',
	subtotal DOUBLE PRECISION,
	tax DOUBLE PRECISION,
	total DOUBLE PRECISION,
	payment_method TEXT NOT NULL DEFAULT '',
	cashier TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	extraction_path TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_store ON receipts(store_name);
CREATE INDEX IF NOT EXISTS idx_receipts_date ON receipts(tx_date);

CREATE TABLE IF NOT EXISTS receipt_items (
	receipt_id TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	item_name TEXT NOT NULL,
	item_price DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (receipt_id, position)
);
`

// DB wraps the sql handle with the driver name so queries can be rebound
// for postgres placeholders.
type DB struct {
	*sql.DB
	driver string
}

// Open connects per the configured driver and verifies the connection
// within the dial timeout.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	name := driver
	if driver == "postgres" {
		name = "pgx"
	}

	logger.Info("db.open", "driver", driver)
	db, err := sql.Open(name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY under concurrent handlers.
		db.SetMaxOpenConns(1)
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("db.open.ok", "driver", driver)
	return &DB{DB: db, driver: driver}, nil
}

// Migrate applies the schema. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites "?" placeholders to "$N" when running on postgres.
func (d *DB) rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
