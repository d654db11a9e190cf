package store

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS staff (
		id           SERIAL PRIMARY KEY,
		name         VARCHAR(100) NOT NULL,
		department   VARCHAR(100) NOT NULL,
		user_id      VARCHAR(100) UNIQUE NOT NULL,
		qr_code_path TEXT,
		image_path   TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// tables created by earlier deployments predate created_at
	`ALTER TABLE staff ADD COLUMN IF NOT EXISTS created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`,
	`CREATE TABLE IF NOT EXISTS qr_attendance (
		id             SERIAL PRIMARY KEY,
		user_id        VARCHAR(255) NOT NULL REFERENCES staff(user_id),
		check_in_time  TIMESTAMPTZ,
		check_out_time TIMESTAMPTZ,
		day_of_week    VARCHAR(10),
		date           DATE NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS qr_attendance_user_date_idx ON qr_attendance (user_id, date)`,
	`CREATE TABLE IF NOT EXISTS scan_events (
		id         BIGSERIAL PRIMARY KEY,
		user_id    VARCHAR(255) NOT NULL,
		outcome    VARCHAR(20) NOT NULL,
		source     VARCHAR(20) NOT NULL DEFAULT '',
		scanned_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS scan_events_user_idx ON scan_events (user_id, scanned_at)`,
	`CREATE TABLE IF NOT EXISTS devices (
		device_id  TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         SERIAL PRIMARY KEY,
		device_id  TEXT NOT NULL REFERENCES devices(device_id),
		token      TEXT UNIQUE NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS staff (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL,
		department   TEXT NOT NULL,
		user_id      TEXT UNIQUE NOT NULL,
		qr_code_path TEXT,
		image_path   TEXT,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS qr_attendance (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id        TEXT NOT NULL REFERENCES staff(user_id),
		check_in_time  TIMESTAMP,
		check_out_time TIMESTAMP,
		day_of_week    TEXT,
		date           DATE NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS qr_attendance_user_date_idx ON qr_attendance (user_id, date)`,
	`CREATE TABLE IF NOT EXISTS scan_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		outcome    TEXT NOT NULL,
		source     TEXT NOT NULL DEFAULT '',
		scanned_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS scan_events_user_idx ON scan_events (user_id, scanned_at)`,
	`CREATE TABLE IF NOT EXISTS devices (
		device_id  TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id  TEXT NOT NULL REFERENCES devices(device_id),
		token      TEXT UNIQUE NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

func (d *DB) migrate(ctx context.Context) error {
	schema := postgresSchema
	if d.Driver == DriverSQLite {
		schema = sqliteSchema
	}
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema step %d: %w", i+1, err)
		}
	}
	return nil
}
