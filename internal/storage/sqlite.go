package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteRepository implements services.Store on an embedded SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ services.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func formatDate(d core.Date) string {
	return d.Format(dateLayout)
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

// monthBounds returns the inclusive start and exclusive end date strings for
// a calendar month.
func monthBounds(year, month int) (string, string) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start.Format(dateLayout), start.AddDate(0, 1, 0).Format(dateLayout)
}

func (r *SQLiteRepository) FindExpenses(ctx context.Context, f services.ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT id, user_id, title, amount_cents, date, category, is_recurring, subscription_id
	          FROM expenses WHERE 1=1`
	var args []any

	if f.UserID != 0 {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Recurring != nil {
		query += " AND is_recurring = ?"
		args = append(args, boolToInt(*f.Recurring))
	}
	if f.Year != 0 {
		start, end := monthBounds(f.Year, f.Month)
		query += " AND date >= ? AND date < ?"
		args = append(args, start, end)
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*core.Expense, error) {
	var (
		e         core.Expense
		date      string
		recurring int64
		subID     sql.NullString
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount.Cents, &date, &e.Category, &recurring, &subID); err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	parsed, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	e.Date = parsed
	e.IsRecurring = recurring != 0
	e.SubscriptionID = subID.String
	return &e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, amount_cents, date, category, is_recurring, subscription_id
		 FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *SQLiteRepository) FindIncomes(ctx context.Context, userID int64, year, month int) ([]core.Income, error) {
	start, end := monthBounds(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount_cents, date FROM incomes
		 WHERE user_id = ? AND date >= ? AND date < ? ORDER BY id`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var (
			in   core.Income
			date string
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.Amount.Cents, &date); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		parsed, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		in.Date = parsed
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindDebts(ctx context.Context, userID int64) ([]core.Debt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, direction, total_cents, remaining_cents FROM debts
		 WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query debts: %w", err)
	}
	defer rows.Close()

	var out []core.Debt
	for rows.Next() {
		var d core.Debt
		if err := rows.Scan(&d.ID, &d.UserID, &d.Direction, &d.Total.Cents, &d.Remaining.Cents); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindActiveSubscriptions(ctx context.Context, userID int64) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, amount_cents, interval, last_charged_at, next_due_date, active, source
		 FROM subscriptions WHERE user_id = ? AND active = 1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		var (
			sub         core.Subscription
			lastCharged string
			nextDue     string
			active      int64
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Amount.Cents, &sub.Interval,
			&lastCharged, &nextDue, &active, &sub.Source); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if sub.LastChargedAt, err = parseDate(lastCharged); err != nil {
			return nil, err
		}
		if sub.NextDueDate, err = parseDate(nextDue); err != nil {
			return nil, err
		}
		sub.Active = active != 0
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Membership lives on the expense rows; hydrate the id sets.
	for i := range out {
		ids, err := r.memberExpenseIDs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].ExpenseIDs = ids
	}
	return out, nil
}

func (r *SQLiteRepository) memberExpenseIDs(ctx context.Context, subscriptionID string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM expenses WHERE subscription_id = ? ORDER BY id`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("query member expenses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateSubscription inserts the subscription row and flags every member
// expense inside a single transaction. A member that is missing or already
// linked rolls the whole cluster back.
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, sub core.Subscription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, name, amount_cents, interval, last_charged_at, next_due_date, active, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.Name, sub.Amount.Cents, string(sub.Interval),
		formatDate(sub.LastChargedAt), formatDate(sub.NextDueDate), boolToInt(sub.Active), sub.Source)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}

	for _, expenseID := range sub.ExpenseIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE expenses SET is_recurring = 1, subscription_id = ?
			 WHERE id = ? AND is_recurring = 0`,
			sub.ID, expenseID)
		if err != nil {
			return fmt.Errorf("flag member expense %d: %w", expenseID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("flag member expense %d: %w", expenseID, err)
		}
		if affected != 1 {
			return fmt.Errorf("member expense %d missing or already linked", expenseID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit subscription %s: %w", sub.ID, err)
	}

	slog.InfoContext(ctx, "Subscription registered",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"name", sub.Name,
		"members", len(sub.ExpenseIDs))
	return nil
}

// AttachExpense links one expense to a subscription and advances the
// subscription's last-charged date, atomically.
func (r *SQLiteRepository) AttachExpense(ctx context.Context, expenseID int64, subscriptionID string, chargedAt core.Date) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET is_recurring = 1, subscription_id = ?
		 WHERE id = ? AND is_recurring = 0`,
		subscriptionID, expenseID)
	if err != nil {
		return fmt.Errorf("flag expense %d: %w", expenseID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("flag expense %d: %w", expenseID, err)
	}
	if affected != 1 {
		return fmt.Errorf("expense %d missing or already linked", expenseID)
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE subscriptions SET last_charged_at = ? WHERE id = ?`,
		formatDate(chargedAt), subscriptionID)
	if err != nil {
		return fmt.Errorf("advance subscription %s: %w", subscriptionID, err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance subscription %s: %w", subscriptionID, err)
	}
	if affected != 1 {
		return fmt.Errorf("subscription %s: %w", subscriptionID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit link of expense %d: %w", expenseID, err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertSmartScore(ctx context.Context, score core.SmartScore) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO smart_scores (user_id, year, month, score, summary,
		     savings_rate, subscription_ratio, volatility, debt_load, high_risk_spending, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (user_id, year, month) DO UPDATE SET
		     score = excluded.score,
		     summary = excluded.summary,
		     savings_rate = excluded.savings_rate,
		     subscription_ratio = excluded.subscription_ratio,
		     volatility = excluded.volatility,
		     debt_load = excluded.debt_load,
		     high_risk_spending = excluded.high_risk_spending,
		     updated_at = excluded.updated_at`,
		score.UserID, score.Year, score.Month, score.Score, score.Summary,
		score.Metrics.SavingsRate, score.Metrics.SubscriptionRatio, score.Metrics.Volatility,
		score.Metrics.DebtLoad, score.Metrics.HighRiskSpending)
	if err != nil {
		return fmt.Errorf("upsert smart score: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, userID int64) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, salary_cents FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.Name, &u.Salary.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
