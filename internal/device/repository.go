package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines device persistence. The core reads devices and flips
// their active and online flags; creation and deletion are driven by the
// claim flow and the HTTP surface.
type Repository interface {
	// GetByID retrieves a device by hardware id.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetOwned retrieves a device only if ownerID owns it.
	GetOwned(ctx context.Context, ownerID, id string) (*Device, error)

	// ListByOwner returns an account's devices ordered by name.
	ListByOwner(ctx context.Context, ownerID string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if the hardware id is already registered.
	Create(ctx context.Context, d *Device) error

	// Delete removes a device (and, through the schema, its schedules).
	Delete(ctx context.Context, id string) error

	// SetActive records the commanded ON/OFF state.
	SetActive(ctx context.Context, id string, active bool) error

	// SetOnline records device presence.
	SetOnline(ctx context.Context, id string, online bool) error

	// RecordTelemetry marks the device online and stores its Wi-Fi link details.
	RecordTelemetry(ctx context.Context, id, wifiSSID string, wifiRSSI int) error

	// SetOvercurrentThreshold updates the trip current in amps.
	SetOvercurrentThreshold(ctx context.Context, id string, amps float64) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, owner_id, name, type, room, active, online, favorite,
	overcurrent_threshold, wifi_ssid, wifi_rssi, created_at, updated_at`

// GetByID retrieves a device by its hardware id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// GetOwned retrieves a device scoped to its owner.
func (r *SQLiteRepository) GetOwned(ctx context.Context, ownerID, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ? AND owner_id = ?`, id, ownerID)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying owned device: %w", err)
	}
	return d, nil
}

// ListByOwner returns an account's devices ordered by name.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE owner_id = ? ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a new device, filling timestamps.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Room == "" {
		d.Room = DefaultRoom
	}
	if d.Type == "" {
		d.Type = TypePlug
	}

	now := time.Now().UTC().Truncate(time.Second)
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.Name, d.Type, d.Room,
		boolToInt(d.Active), boolToInt(d.Online), boolToInt(d.Favorite),
		d.Config.OvercurrentThreshold, d.WifiSSID, d.WifiRSSI,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Delete removes a device by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRow(result)
}

// SetActive records the commanded ON/OFF state.
func (r *SQLiteRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, "active = ?", boolToInt(active))
}

// SetOnline records device presence.
func (r *SQLiteRepository) SetOnline(ctx context.Context, id string, online bool) error {
	return r.update(ctx, id, "online = ?", boolToInt(online))
}

// RecordTelemetry marks the device online and stores its Wi-Fi details.
func (r *SQLiteRepository) RecordTelemetry(ctx context.Context, id, wifiSSID string, wifiRSSI int) error {
	return r.update(ctx, id, "online = 1, wifi_ssid = ?, wifi_rssi = ?", wifiSSID, wifiRSSI)
}

// SetOvercurrentThreshold updates the trip current in amps.
func (r *SQLiteRepository) SetOvercurrentThreshold(ctx context.Context, id string, amps float64) error {
	if err := ValidateThreshold(amps); err != nil {
		return err
	}
	return r.update(ctx, id, "overcurrent_threshold = ?", amps)
}

// update applies a SET clause to one device and bumps updated_at.
func (r *SQLiteRepository) update(ctx context.Context, id, set string, args ...any) error {
	args = append(args, time.Now().UTC().Format(time.RFC3339), id)
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET "+set+", updated_at = ? WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is implemented by both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var (
		d                        Device
		active, online, favorite int
		createdAt, updatedAt     string
	)
	err := scanner.Scan(
		&d.ID, &d.OwnerID, &d.Name, &d.Type, &d.Room,
		&active, &online, &favorite,
		&d.Config.OvercurrentThreshold, &d.WifiSSID, &d.WifiRSSI,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Active = active != 0
	d.Online = online != 0
	d.Favorite = favorite != 0

	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique or primary key violation.
func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
