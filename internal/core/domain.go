package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// Monthly is the only billing interval the detector produces today.
	Monthly BillingInterval = "monthly"

	// SourceAutoDetected marks subscriptions created by batch detection.
	SourceAutoDetected = "auto-detected"
)

const (
	DebtGiven DebtDirection = "given"
	DebtTaken DebtDirection = "taken"
)

type (
	BillingInterval string

	DebtDirection string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single ledger entry. IsRecurring and SubscriptionID are
	// owned by the detection engine; everything else is written by the host
	// application.
	Expense struct {
		ID             int64
		UserID         int64
		Title          string
		Amount         Money
		Date           Date
		Category       string
		IsRecurring    bool
		SubscriptionID string // empty when not linked to a subscription
	}

	// Income is a read-only input to scoring.
	Income struct {
		ID     int64
		UserID int64
		Amount Money
		Date   Date
	}

	// Debt is an outstanding loan. Only taken debts with positive remaining
	// balance count toward debt load.
	Debt struct {
		ID        int64
		UserID    int64
		Direction DebtDirection
		Total     Money
		Remaining Money
	}

	// Subscription is a detected recurring charge. ExpenseIDs grows
	// monotonically as the linker attaches new expenses.
	Subscription struct {
		ID            string // uuid
		UserID        int64
		Name          string
		Amount        Money
		Interval      BillingInterval
		LastChargedAt Date
		NextDueDate   Date
		Active        bool
		Source        string
		ExpenseIDs    []int64
	}

	// ScoreMetrics holds the raw percentage signals behind a smart score.
	ScoreMetrics struct {
		SavingsRate       float64
		SubscriptionRatio float64
		Volatility        float64
		DebtLoad          float64
		HighRiskSpending  float64
	}

	// SmartScore is the composite financial health indicator for one
	// user-month. There is at most one row per (UserID, Year, Month).
	SmartScore struct {
		UserID  int64
		Year    int
		Month   int // 1-12
		Score   int // 0-100
		Summary string
		Metrics ScoreMetrics
	}

	// User carries the stored salary used as income fallback in scoring.
	User struct {
		ID     int64
		Name   string
		Salary Money
	}
)

// HighRiskCategories are the discretionary spending categories counted by
// the high-risk spending metric.
var HighRiskCategories = map[string]bool{
	"Entertainment": true,
	"Shopping":      true,
	"Dining":        true,
}

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyCategory    = errors.New("empty category")
	ErrUnknownDirection = errors.New("unknown debt direction")
)

// NewDate creates a Date at UTC midnight. Engine dates are day-granular.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// AddDays returns the date shifted by the given number of days.
func (d Date) AddDays(days int) Date {
	return Date{Time: d.AddDate(0, 0, days)}
}

// InMonth reports whether the date falls inside the given calendar month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && int(d.Time.Month()) == month
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Units returns the whole-currency value for ratio calculations.
// Use cents for exact arithmetic.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// BucketUnits floors the amount to the nearest lower 100 currency units, so
// charges that differ only by minor rounding share a cluster bucket.
func (m Money) BucketUnits() int64 {
	return m.Cents / 10000 * 100
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (i Income) Validate() error {
	if err := i.Date.Validate(); err != nil {
		return err
	}
	return i.Amount.Validate()
}

func (d Debt) Validate() error {
	switch d.Direction {
	case DebtGiven, DebtTaken:
	default:
		return ErrUnknownDirection
	}
	if d.Total.Cents < 0 || d.Remaining.Cents < 0 {
		return ErrInvalidAmount
	}
	if d.Remaining.Cents > d.Total.Cents {
		return errors.New("remaining exceeds total")
	}
	return nil
}

// ContainsExpense reports whether the subscription already tracks the given
// expense id.
func (s Subscription) ContainsExpense(id int64) bool {
	for _, eid := range s.ExpenseIDs {
		if eid == id {
			return true
		}
	}
	return false
}
