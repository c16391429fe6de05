package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines account persistence used by the notification and
// budget components.
type Repository interface {
	// Get returns the account with its push tokens.
	Get(ctx context.Context, id string) (*Account, error)

	// Create inserts an account, generating an id when ID is empty.
	Create(ctx context.Context, a *Account) error

	// ListUnnotified returns accounts with a positive budget whose last
	// budget warning was not sent in the given month.
	ListUnnotified(ctx context.Context, mark BudgetMark) ([]Account, error)

	// MarkBudgetNotified records that the warning for mark went out.
	MarkBudgetNotified(ctx context.Context, id string, mark BudgetMark) error

	// AddPushToken registers a device token; re-adding is a no-op.
	AddPushToken(ctx context.Context, id, token string) error

	// RemovePushTokens drops tokens the push provider rejected.
	RemovePushTokens(ctx context.Context, id string, tokens []string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const accountColumns = `id, name, email, monthly_budget, tariff_tier,
	COALESCE(budget_notified_month, 0), COALESCE(budget_notified_year, 0), created_at`

// Get returns the account with its push tokens.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}

	a.PushTokens, err = r.pushTokens(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts an account, applying budget defaults.
func (r *SQLiteRepository) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.TariffTier == "" {
		a.TariffTier = DefaultTariffTier
	}
	if !ValidTariffTier(a.TariffTier) {
		return fmt.Errorf("%w: %q", ErrInvalidTariffTier, a.TariffTier)
	}
	a.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, monthly_budget, tariff_tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.MonthlyBudget, a.TariffTier, a.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "constraint failed") {
			return ErrAccountExists
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	for _, token := range a.PushTokens {
		if err := r.AddPushToken(ctx, a.ID, token); err != nil {
			return err
		}
	}
	return nil
}

// ListUnnotified returns accounts still eligible for a budget warning in mark's month.
func (r *SQLiteRepository) ListUnnotified(ctx context.Context, mark BudgetMark) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE monthly_budget > 0
		  AND NOT (COALESCE(budget_notified_month, 0) = ? AND COALESCE(budget_notified_year, 0) = ?)
		ORDER BY id`,
		mark.Month, mark.Year,
	)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

// MarkBudgetNotified records that the warning for mark went out.
func (r *SQLiteRepository) MarkBudgetNotified(ctx context.Context, id string, mark BudgetMark) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET budget_notified_month = ?, budget_notified_year = ? WHERE id = ?",
		mark.Month, mark.Year, id,
	)
	if err != nil {
		return fmt.Errorf("updating budget mark: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// AddPushToken registers a device token for id.
func (r *SQLiteRepository) AddPushToken(ctx context.Context, id, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_tokens (account_id, token, created_at) VALUES (?, ?, ?)
		ON CONFLICT (account_id, token) DO NOTHING`,
		id, token, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ErrAccountNotFound
		}
		return fmt.Errorf("inserting push token: %w", err)
	}
	return nil
}

// RemovePushTokens drops tokens in one transaction.
func (r *SQLiteRepository) RemovePushTokens(ctx context.Context, id string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for _, token := range tokens {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM push_tokens WHERE account_id = ? AND token = ?", id, token,
		); err != nil {
			return fmt.Errorf("deleting push token: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) pushTokens(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT token FROM push_tokens WHERE account_id = ? ORDER BY created_at, token", id)
	if err != nil {
		return nil, fmt.Errorf("querying push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scanning push token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(scanner rowScanner) (*Account, error) {
	var (
		a         Account
		createdAt string
	)
	err := scanner.Scan(
		&a.ID, &a.Name, &a.Email, &a.MonthlyBudget, &a.TariffTier,
		&a.BudgetNotified.Month, &a.BudgetNotified.Year, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &a, nil
}
