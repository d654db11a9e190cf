package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ErrTokenRejected means a refresh token is unknown, revoked or expired.
var ErrTokenRejected = errors.New("refresh token rejected")

// DeviceStore persists enrolled scanner devices and their refresh tokens.
type DeviceStore struct {
	db *sql.DB
}

// NewDeviceStore creates a store.
func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// UpsertDevice ensures a device record exists.
func (s *DeviceStore) UpsertDevice(ctx context.Context, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return errors.New("device id required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (s *DeviceStore) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, token, expiresAt.UTC())
	return err
}

// RevokeRefreshToken marks an active token revoked and returns its device.
// Unknown, already revoked and expired tokens yield ErrTokenRejected.
func (s *DeviceStore) RevokeRefreshToken(ctx context.Context, token string, now time.Time) (string, error) {
	var deviceID string
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, expires_at FROM refresh_tokens
		WHERE token = $1 AND revoked = FALSE
	`, token).Scan(&deviceID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenRejected
	}
	if err != nil {
		return "", err
	}
	if !now.Before(expiresAt) {
		return "", ErrTokenRejected
	}
	res, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1 AND revoked = FALSE`, token)
	if err != nil {
		return "", err
	}
	// another request rotated it first
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n == 0 {
		return "", ErrTokenRejected
	}
	return deviceID, nil
}
