package services

import (
	"context"
	"fmt"
	"log/slog"
)

// Linker attaches newly created expenses to known subscriptions. It never
// creates subscriptions; only batch detection does that.
type Linker struct {
	store   Store
	matcher SubscriptionMatcher
}

func NewLinker(store Store, matcher SubscriptionMatcher) *Linker {
	if matcher == nil {
		matcher = SubstringMatcher{Tolerance: DefaultMatchTolerance}
	}
	return &Linker{store: store, matcher: matcher}
}

// LinkExpense matches one expense against the user's active subscriptions
// and attaches it to the first match in store order, advancing the
// subscription's last-charged date. No match is a silent no-op. Taking the
// first match keeps linking deterministic and prevents double-linking.
func (l *Linker) LinkExpense(ctx context.Context, expenseID int64) error {
	expense, err := l.store.GetExpense(ctx, expenseID)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}

	if expense.IsRecurring {
		slog.DebugContext(ctx, "Expense already linked, skipping",
			"expense_id", expenseID,
			"subscription_id", expense.SubscriptionID)
		return nil
	}

	subs, err := l.store.FindActiveSubscriptions(ctx, expense.UserID)
	if err != nil {
		return fmt.Errorf("find active subscriptions: %w", err)
	}

	for _, sub := range subs {
		if !l.matcher.Matches(*expense, sub) {
			continue
		}

		if err := l.store.AttachExpense(ctx, expense.ID, sub.ID, expense.Date); err != nil {
			return fmt.Errorf("attach expense %d to subscription %s: %w", expense.ID, sub.ID, err)
		}

		slog.InfoContext(ctx, "Linked expense to subscription",
			"expense_id", expense.ID,
			"subscription_id", sub.ID,
			"name", sub.Name,
			"amount_cents", expense.Amount.Cents)
		return nil
	}

	slog.DebugContext(ctx, "No subscription matched expense",
		"expense_id", expense.ID,
		"user_id", expense.UserID,
		"candidates", len(subs))
	return nil
}
