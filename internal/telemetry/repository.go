package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists power summaries.
type Repository interface {
	// InsertMany writes all logs in one transaction.
	InsertMany(ctx context.Context, logs []PowerLog) error

	// EnergyBounds returns the first and last energy readings of a device
	// with from <= timestamp < to, in timestamp order.
	EnergyBounds(ctx context.Context, deviceID string, from, to time.Time) (EnergyBounds, error)
}

// SQLiteRepository implements Repository on the power_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// InsertMany writes logs in a single transaction. An empty slice is a no-op.
func (r *SQLiteRepository) InsertMany(ctx context.Context, logs []PowerLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO power_logs (device_id, voltage, current, power, energy_kwh, power_factor, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		if _, err := stmt.ExecContext(ctx,
			l.DeviceID, l.Voltage, l.Current, l.Power, l.EnergyKWh, l.PowerFactor,
			formatTime(l.Timestamp),
		); err != nil {
			return fmt.Errorf("inserting power log for %s: %w", l.DeviceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing power logs: %w", err)
	}
	return nil
}

// EnergyBounds reads the first and last energy_kwh for deviceID in [from, to).
func (r *SQLiteRepository) EnergyBounds(ctx context.Context, deviceID string, from, to time.Time) (EnergyBounds, error) {
	var b EnergyBounds
	lo, hi := formatTime(from), formatTime(to)

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM power_logs
		WHERE device_id = ? AND timestamp >= ? AND timestamp < ?`,
		deviceID, lo, hi,
	).Scan(&b.Count)
	if err != nil {
		return b, fmt.Errorf("counting power logs: %w", err)
	}
	if b.Count == 0 {
		return b, nil
	}

	const edge = `
		SELECT energy_kwh FROM power_logs
		WHERE device_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp %s, id %s LIMIT 1`

	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(edge, "ASC", "ASC"), deviceID, lo, hi).Scan(&b.First); err != nil {
		return b, fmt.Errorf("reading first energy: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(edge, "DESC", "DESC"), deviceID, lo, hi).Scan(&b.Last); err != nil {
		return b, fmt.Errorf("reading last energy: %w", err)
	}
	return b, nil
}

// formatTime stores timestamps as fixed-width UTC text so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
