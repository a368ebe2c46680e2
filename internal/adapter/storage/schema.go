package storage

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS shipments (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		tracking_code VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_shipments_tracking_code (tracking_code)
	)`,
	`CREATE TABLE IF NOT EXISTS shirts (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		serial_number VARCHAR(255) NOT NULL,
		color VARCHAR(64) NOT NULL,
		size VARCHAR(8) NOT NULL,
		type VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'in_stock',
		shipment_id VARCHAR(36) NULL,
		UNIQUE KEY uq_shirts_serial_number (serial_number),
		KEY ix_shirts_shipment_id (shipment_id),
		CONSTRAINT fk_shirts_shipment FOREIGN KEY (shipment_id) REFERENCES shipments (id)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS shipments (
		id TEXT PRIMARY KEY,
		tracking_code TEXT NOT NULL CONSTRAINT uq_shipments_tracking_code UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS shirts (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL CONSTRAINT uq_shirts_serial_number UNIQUE,
		color TEXT NOT NULL,
		size TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_stock',
		shipment_id TEXT NULL REFERENCES shipments (id)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_shirts_shipment_id ON shirts (shipment_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS shipments (
		id TEXT PRIMARY KEY,
		tracking_code TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS shirts (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL UNIQUE,
		color TEXT NOT NULL,
		size TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_stock',
		shipment_id TEXT NULL REFERENCES shipments (id)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_shirts_shipment_id ON shirts (shipment_id)`,
}

// Migrate creates the tables and indexes if they are missing. It is safe to run on every start.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}
