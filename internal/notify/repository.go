package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository stores notification history.
type Repository interface {
	// Create stores n, assigning an id and creation time if unset.
	Create(ctx context.Context, n *Notification) error

	// ListByAccount returns an account's newest notifications first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Notification, error)
}

// SQLiteRepository implements Repository on the notifications table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts n.
func (r *SQLiteRepository) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = n.CreatedAt.UTC().Truncate(time.Second)
	if n.Data == nil {
		n.Data = map[string]string{}
	}

	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("encoding notification data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, account_id, title, body, data, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.AccountID, n.Title, n.Body, string(data), n.Read, n.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// ListByAccount returns up to limit notifications, newest first.
func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, title, body, data, read, created_at
		FROM notifications WHERE account_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n         Notification
			data      string
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Title, &n.Body, &data, &n.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return nil, fmt.Errorf("decoding notification data: %w", err)
		}
		if n.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing notification time: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return out, nil
}
