package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a durable Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the registry database at the
// given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrStorage, err)
	}

	// WAL for concurrent readers, busy_timeout so concurrent writers queue
	// instead of failing with SQLITE_BUSY
	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to configure database: %v", ErrStorage, err)
	}

	s := &SQLiteStore{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to migrate database: %v", ErrStorage, err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		device_uuid TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		mac_address TEXT,
		device_type TEXT,
		status INTEGER NOT NULL DEFAULT 1,
		registered_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS token_issuances (
		token_id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		issued_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_token_issuances_device_id ON token_issuances(device_id);
	CREATE INDEX IF NOT EXISTS idx_devices_device_id ON devices(device_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// IsRegistered reports whether the device uuid has a registered record.
func (s *SQLiteStore) IsRegistered(ctx context.Context, deviceUUID string) (bool, error) {
	var status DeviceStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM devices WHERE device_uuid = ?`, deviceUUID).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return status == StatusRegistered, nil
}

// GetDevice returns the device record for the uuid, or ErrNotFound.
func (s *SQLiteStore) GetDevice(ctx context.Context, deviceUUID string) (*Device, error) {
	var dev Device
	err := s.db.QueryRowContext(ctx, `
		SELECT device_uuid, device_id, mac_address, device_type, status, registered_at
		FROM devices WHERE device_uuid = ?
	`, deviceUUID).Scan(
		&dev.DeviceUUID, &dev.DeviceID, &dev.MACAddress, &dev.DeviceType,
		&dev.Status, &dev.RegisteredAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &dev, nil
}

// RegisterDevice registers a device. The conflict clause makes the
// check-and-insert atomic: of any number of concurrent registrations for the
// same uuid, exactly one inserts and the rest are no-ops.
func (s *SQLiteStore) RegisterDevice(ctx context.Context, reg Registration) error {
	if reg.DeviceUUID == "" || reg.DeviceID == "" {
		return fmt.Errorf("%w: device uuid and device id are required", ErrStorage)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (device_uuid, device_id, mac_address, device_type, status, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_uuid) DO NOTHING
	`, reg.DeviceUUID, reg.DeviceID, reg.MACAddress, reg.DeviceType, StatusRegistered, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// SetStatus overrides a device's status. Intended for administrative
// revocation; registration state is otherwise immutable.
func (s *SQLiteStore) SetStatus(ctx context.Context, deviceUUID string, status DeviceStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET status = ? WHERE device_uuid = ?`, status, deviceUUID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// LogTokenIssuance appends an audit entry for an issued token.
func (s *SQLiteStore) LogTokenIssuance(ctx context.Context, deviceID, tokenID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_issuances (token_id, device_id, issued_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, tokenID, deviceID, time.Now().UTC(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Issuances returns the audit entries for a device, newest first.
func (s *SQLiteStore) Issuances(ctx context.Context, deviceID string) ([]Issuance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, device_id, issued_at, expires_at
		FROM token_issuances
		WHERE device_id = ?
		ORDER BY issued_at DESC
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	var issuances []Issuance
	for rows.Next() {
		var iss Issuance
		if err := rows.Scan(&iss.TokenID, &iss.DeviceID, &iss.IssuedAt, &iss.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		issuances = append(issuances, iss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return issuances, nil
}

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)
