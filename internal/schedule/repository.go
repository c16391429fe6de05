package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository reads and writes schedules.
type Repository interface {
	// Create stores a new schedule, assigning an id and creation time if unset.
	Create(ctx context.Context, s *Schedule) error

	// Delete removes a schedule.
	Delete(ctx context.Context, id string) error

	// ListDue returns enabled schedules for any of days whose start or end
	// time equals clock, ordered by creation time then id.
	ListDue(ctx context.Context, days []string, clock string) ([]Schedule, error)
}

// SQLiteRepository implements Repository on the schedules table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts s.
func (r *SQLiteRepository) Create(ctx context.Context, s *Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.CreatedAt = s.CreatedAt.UTC().Truncate(time.Millisecond)
	if s.Days == nil {
		s.Days = []string{}
	}

	days, err := json.Marshal(s.Days)
	if err != nil {
		return fmt.Errorf("encoding days: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO schedules (id, owner_id, device_id, name, start_time, end_time, days, action, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.DeviceID, s.Name, s.StartTime, s.EndTime, string(days), s.Action,
		boolToInt(s.Enabled), s.CreatedAt.Format(createdLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// Delete removes the schedule with id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ListDue finds enabled schedules due at clock on any of days.
func (r *SQLiteRepository) ListDue(ctx context.Context, days []string, clock string) ([]Schedule, error) {
	if len(days) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(days)), ",")
	query := `
		SELECT id, owner_id, device_id, name, start_time, end_time, days, action, enabled, created_at
		FROM schedules s
		WHERE enabled = 1
		  AND (start_time = ? OR end_time = ?)
		  AND EXISTS (SELECT 1 FROM json_each(s.days) WHERE json_each.value IN (` + placeholders + `))
		ORDER BY created_at, id`

	args := make([]any, 0, len(days)+2)
	args = append(args, clock, clock)
	for _, d := range days {
		args = append(args, d)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying due schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return out, nil
}

// createdLayout keeps sub-second order while staying fixed width.
const createdLayout = "2006-01-02T15:04:05.000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(scanner rowScanner) (*Schedule, error) {
	var (
		s         Schedule
		days      string
		enabled   int
		createdAt string
	)
	err := scanner.Scan(&s.ID, &s.OwnerID, &s.DeviceID, &s.Name, &s.StartTime, &s.EndTime,
		&days, &s.Action, &enabled, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}

	if err := json.Unmarshal([]byte(days), &s.Days); err != nil {
		return nil, fmt.Errorf("decoding days of schedule %s: %w", s.ID, err)
	}
	s.Enabled = enabled != 0
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of schedule %s: %w", s.ID, err)
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
