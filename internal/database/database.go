package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN and verifies it
// with a ping.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema is the idempotent DDL for the warehouse tables. Keeping it in code
// lets docker-compose bootstrap the stack without a migration tool.
const Schema = `
CREATE TABLE IF NOT EXISTS shipments (
	id TEXT PRIMARY KEY,
	reference_number TEXT NOT NULL UNIQUE,
	origin TEXT NOT NULL,
	destination TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING'
		CHECK (status IN ('PENDING','IN_PROGRESS','COLLECTED','CANCELLED','SHIPPED')),
	max_weight_capacity NUMERIC NOT NULL DEFAULT 12000 CHECK (max_weight_capacity > 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS docks (
	id TEXT PRIMARY KEY,
	number TEXT NOT NULL UNIQUE,
	dock_type TEXT NOT NULL DEFAULT 'STANDARD'
		CHECK (dock_type IN ('STANDARD','COLD_CHAIN','VAN_ACCESS')),
	is_occupied BOOLEAN NOT NULL DEFAULT FALSE,
	current_shipment_id TEXT REFERENCES shipments(id),
	CONSTRAINT docks_occupied_has_shipment CHECK (is_occupied = (current_shipment_id IS NOT NULL))
);
CREATE TABLE IF NOT EXISTS pallets (
	id TEXT PRIMARY KEY,
	barcode TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'STAGED'
		CHECK (status IN ('STAGED','LOADING_TO_DOCK','IN_TRANSIT','DELIVERED')),
	weight NUMERIC CHECK (weight IS NULL OR weight >= 0),
	current_dock_id TEXT REFERENCES docks(id),
	shipment_id TEXT REFERENCES shipments(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_pallets_shipment_id ON pallets(shipment_id);
CREATE INDEX IF NOT EXISTS idx_docks_current_shipment_id ON docks(current_shipment_id);`

// EnsureSchema creates the warehouse tables if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
