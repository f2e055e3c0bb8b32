// Package services implements the recurring-subscription detection engine
// and the financial health scorer on top of an abstract store.
package services

import (
	"context"

	"fintrack/internal/core"
)

// ExpenseFilter narrows FindExpenses results. Zero values mean "any".
type ExpenseFilter struct {
	UserID    int64
	Recurring *bool
	Year      int
	Month     int // 1-12, only honored together with Year
}

// Store is the persistence contract the engine consumes. Implementations
// must return expenses and subscriptions in a stable order (by id) so that
// detection and linking stay deterministic.
type Store interface {
	FindExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
	GetExpense(ctx context.Context, id int64) (*core.Expense, error)
	FindIncomes(ctx context.Context, userID int64, year, month int) ([]core.Income, error)
	FindDebts(ctx context.Context, userID int64) ([]core.Debt, error)
	FindActiveSubscriptions(ctx context.Context, userID int64) ([]core.Subscription, error)

	// CreateSubscription persists a detected subscription and marks all of
	// its member expenses as recurring in one transaction. A failure leaves
	// both the subscription and its members untouched.
	CreateSubscription(ctx context.Context, sub core.Subscription) error

	// AttachExpense links one expense to an existing subscription and
	// advances its last-charged date, atomically.
	AttachExpense(ctx context.Context, expenseID int64, subscriptionID string, chargedAt core.Date) error

	// UpsertSmartScore overwrites the score row for (UserID, Year, Month).
	UpsertSmartScore(ctx context.Context, score core.SmartScore) error

	GetUser(ctx context.Context, userID int64) (*core.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}
