package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// MemoryRepository is an in-memory Store used for tests and for running the
// workers without a database. Safe for concurrent use.
type MemoryRepository struct {
	mu sync.RWMutex

	expenses map[int64]*core.Expense
	incomes  []core.Income
	debts    []core.Debt
	subs     map[string]*core.Subscription
	subOrder []string
	scores   map[string]core.SmartScore
	users    map[int64]core.User

	nextExpenseID int64
	nextIncomeID  int64
	nextDebtID    int64
}

var _ services.Store = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		expenses: make(map[int64]*core.Expense),
		subs:     make(map[string]*core.Subscription),
		scores:   make(map[string]core.SmartScore),
		users:    make(map[int64]core.User),
	}
}

// AddUser seeds a user record.
func (r *MemoryRepository) AddUser(u core.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// AddExpense seeds an expense, assigning an id when none is set.
func (r *MemoryRepository) AddExpense(e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("invalid expense: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		r.nextExpenseID++
		e.ID = r.nextExpenseID
	} else if e.ID > r.nextExpenseID {
		r.nextExpenseID = e.ID
	}
	r.expenses[e.ID] = &e
	return e.ID, nil
}

// AddIncome seeds an income record.
func (r *MemoryRepository) AddIncome(in core.Income) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, fmt.Errorf("invalid income: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if in.ID == 0 {
		r.nextIncomeID++
		in.ID = r.nextIncomeID
	}
	r.incomes = append(r.incomes, in)
	return in.ID, nil
}

// AddDebt seeds a debt record.
func (r *MemoryRepository) AddDebt(d core.Debt) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, fmt.Errorf("invalid debt: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == 0 {
		r.nextDebtID++
		d.ID = r.nextDebtID
	}
	r.debts = append(r.debts, d)
	return d.ID, nil
}

func (r *MemoryRepository) FindExpenses(_ context.Context, f services.ExpenseFilter) ([]core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.expenses))
	for id := range r.expenses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []core.Expense
	for _, id := range ids {
		e := r.expenses[id]
		if f.UserID != 0 && e.UserID != f.UserID {
			continue
		}
		if f.Recurring != nil && e.IsRecurring != *f.Recurring {
			continue
		}
		if f.Year != 0 && !e.Date.InMonth(f.Year, f.Month) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (r *MemoryRepository) GetExpense(_ context.Context, id int64) (*core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	copied := *e
	return &copied, nil
}

func (r *MemoryRepository) FindIncomes(_ context.Context, userID int64, year, month int) ([]core.Income, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Income
	for _, in := range r.incomes {
		if in.UserID == userID && in.Date.InMonth(year, month) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindDebts(_ context.Context, userID int64) ([]core.Debt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Debt
	for _, d := range r.debts {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindActiveSubscriptions(_ context.Context, userID int64) ([]core.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Subscription
	for _, id := range r.subOrder {
		sub := r.subs[id]
		if sub.UserID == userID && sub.Active {
			copied := *sub
			copied.ExpenseIDs = append([]int64(nil), sub.ExpenseIDs...)
			out = append(out, copied)
		}
	}
	return out, nil
}

// CreateSubscription inserts the subscription and flags its member expenses
// in one critical section; any missing or already-linked member fails the
// whole operation with no partial writes.
func (r *MemoryRepository) CreateSubscription(_ context.Context, sub core.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[sub.ID]; exists {
		return fmt.Errorf("subscription %s already exists", sub.ID)
	}
	for _, id := range sub.ExpenseIDs {
		e, ok := r.expenses[id]
		if !ok {
			return fmt.Errorf("member expense %d: %w", id, ErrNotFound)
		}
		if e.IsRecurring {
			return fmt.Errorf("member expense %d already linked to %s", id, e.SubscriptionID)
		}
	}

	copied := sub
	copied.ExpenseIDs = append([]int64(nil), sub.ExpenseIDs...)
	r.subs[sub.ID] = &copied
	r.subOrder = append(r.subOrder, sub.ID)

	for _, id := range sub.ExpenseIDs {
		r.expenses[id].IsRecurring = true
		r.expenses[id].SubscriptionID = sub.ID
	}
	return nil
}

func (r *MemoryRepository) AttachExpense(_ context.Context, expenseID int64, subscriptionID string, chargedAt core.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.expenses[expenseID]
	if !ok {
		return fmt.Errorf("expense %d: %w", expenseID, ErrNotFound)
	}
	sub, ok := r.subs[subscriptionID]
	if !ok {
		return fmt.Errorf("subscription %s: %w", subscriptionID, ErrNotFound)
	}
	if e.IsRecurring {
		return fmt.Errorf("expense %d already linked to %s", expenseID, e.SubscriptionID)
	}

	e.IsRecurring = true
	e.SubscriptionID = subscriptionID
	if !sub.ContainsExpense(expenseID) {
		sub.ExpenseIDs = append(sub.ExpenseIDs, expenseID)
	}
	sub.LastChargedAt = chargedAt
	return nil
}

func scoreKey(userID int64, year, month int) string {
	return fmt.Sprintf("%d/%04d-%02d", userID, year, month)
}

func (r *MemoryRepository) UpsertSmartScore(_ context.Context, score core.SmartScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[scoreKey(score.UserID, score.Year, score.Month)] = score
	return nil
}

// GetSmartScore returns the stored score for one user-month.
func (r *MemoryRepository) GetSmartScore(userID int64, year, month int) (core.SmartScore, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	score, ok := r.scores[scoreKey(userID, year, month)]
	return score, ok
}

// ScoreCount returns the number of stored score rows.
func (r *MemoryRepository) ScoreCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scores)
}

func (r *MemoryRepository) GetUser(_ context.Context, userID int64) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return &u, nil
}

func (r *MemoryRepository) ListUserIDs(_ context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
