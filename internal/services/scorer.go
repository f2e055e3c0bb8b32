package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"fintrack/internal/core"
)

// Sub-score weights. Savings behavior dominates; discretionary spending
// carries the least weight.
const (
	weightSavings      = 0.35
	weightSubscription = 0.20
	weightVolatility   = 0.15
	weightDebt         = 0.20
	weightRisk         = 0.10
)

// Summary thresholds: a clause is emitted when a metric crosses its band.
const (
	greatSavingsRate     = 20.0
	lowSavingsRate       = 10.0
	highSubscriptionRate = 20.0
	highDebtLoad         = 30.0
	highRiskShare        = 30.0
)

// ScoreService computes and persists smart scores. Calculated scores are
// cached briefly so dashboard-style callers do not recompute on every read;
// persisting always recomputes from the store.
type ScoreService struct {
	store Store
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewScoreService creates a score service. A zero cacheTTL disables the
// read cache.
func NewScoreService(store Store, cacheTTL time.Duration) (*ScoreService, error) {
	var cache *ristretto.Cache
	if cacheTTL > 0 {
		var err error
		cache, err = ristretto.NewCache(&ristretto.Config{
			NumCounters: 10_000,
			MaxCost:     1 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create score cache: %w", err)
		}
	}
	return &ScoreService{store: store, cache: cache, ttl: cacheTTL}, nil
}

func scoreCacheKey(userID int64, year, month int) string {
	return fmt.Sprintf("%d/%04d-%02d", userID, year, month)
}

// Calculate computes the smart score for one user-month without persisting
// it. Results may be served from cache within the configured TTL.
func (s *ScoreService) Calculate(ctx context.Context, userID int64, year, month int) (core.SmartScore, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(scoreCacheKey(userID, year, month)); ok {
			if score, ok := v.(core.SmartScore); ok {
				return score, nil
			}
		}
	}

	score, err := s.compute(ctx, userID, year, month)
	if err != nil {
		return core.SmartScore{}, err
	}

	s.cacheScore(score)
	return score, nil
}

// StoreScore recomputes the score from the store and upserts it, replacing
// any previous row for the same user-month.
func (s *ScoreService) StoreScore(ctx context.Context, userID int64, year, month int) (core.SmartScore, error) {
	score, err := s.compute(ctx, userID, year, month)
	if err != nil {
		return core.SmartScore{}, err
	}

	if err := s.store.UpsertSmartScore(ctx, score); err != nil {
		return core.SmartScore{}, fmt.Errorf("upsert smart score: %w", err)
	}

	s.cacheScore(score)

	slog.InfoContext(ctx, "Smart score stored",
		"user_id", userID,
		"year", year,
		"month", month,
		"score", score.Score,
		"summary", score.Summary)
	return score, nil
}

func (s *ScoreService) cacheScore(score core.SmartScore) {
	if s.cache == nil {
		return
	}
	s.cache.SetWithTTL(scoreCacheKey(score.UserID, score.Year, score.Month), score, 1, s.ttl)
}

func (s *ScoreService) compute(ctx context.Context, userID int64, year, month int) (core.SmartScore, error) {
	expenses, err := s.store.FindExpenses(ctx, ExpenseFilter{UserID: userID, Year: year, Month: month})
	if err != nil {
		return core.SmartScore{}, fmt.Errorf("find expenses: %w", err)
	}
	incomes, err := s.store.FindIncomes(ctx, userID, year, month)
	if err != nil {
		return core.SmartScore{}, fmt.Errorf("find incomes: %w", err)
	}
	subs, err := s.store.FindActiveSubscriptions(ctx, userID)
	if err != nil {
		return core.SmartScore{}, fmt.Errorf("find active subscriptions: %w", err)
	}
	debts, err := s.store.FindDebts(ctx, userID)
	if err != nil {
		return core.SmartScore{}, fmt.Errorf("find debts: %w", err)
	}

	var incomeUnits float64
	for _, in := range incomes {
		incomeUnits += in.Amount.Units()
	}
	if incomeUnits == 0 {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return core.SmartScore{}, fmt.Errorf("get user: %w", err)
		}
		incomeUnits = user.Salary.Units()
	}
	// Floor of one currency unit. A user with no income records and no
	// stored salary still gets a defined (low) score instead of a division
	// by zero.
	if incomeUnits == 0 {
		incomeUnits = 1
	}

	var expenseUnits, riskUnits float64
	amounts := make([]float64, 0, len(expenses))
	for _, e := range expenses {
		expenseUnits += e.Amount.Units()
		amounts = append(amounts, e.Amount.Units())
		if core.HighRiskCategories[e.Category] {
			riskUnits += e.Amount.Units()
		}
	}

	var subUnits float64
	for _, sub := range subs {
		subUnits += sub.Amount.Units()
	}

	var debtUnits float64
	for _, d := range debts {
		if d.Direction == core.DebtTaken && d.Remaining.Cents > 0 {
			debtUnits += d.Remaining.Units()
		}
	}

	metrics := core.ScoreMetrics{
		SavingsRate:       math.Max(0, (incomeUnits-expenseUnits)/incomeUnits*100),
		SubscriptionRatio: subUnits / incomeUnits * 100,
		Volatility:        core.CoefficientOfVariation(amounts) * 100,
		DebtLoad:          debtUnits / incomeUnits * 100,
	}
	if expenseUnits > 0 {
		metrics.HighRiskSpending = riskUnits / expenseUnits * 100
	}

	savingsScore := math.Min(100, metrics.SavingsRate*2)
	subscriptionScore := math.Max(0, 100-metrics.SubscriptionRatio*3)
	volatilityScore := math.Max(0, 100-metrics.Volatility)
	debtScore := math.Max(0, 100-metrics.DebtLoad*2)
	riskScore := math.Max(0, 100-metrics.HighRiskSpending*2)

	total := savingsScore*weightSavings +
		subscriptionScore*weightSubscription +
		volatilityScore*weightVolatility +
		debtScore*weightDebt +
		riskScore*weightRisk

	score := int(math.Round(math.Min(100, math.Max(0, total))))

	return core.SmartScore{
		UserID:  userID,
		Year:    year,
		Month:   month,
		Score:   score,
		Summary: summarize(metrics),
		Metrics: metrics,
	}, nil
}

// summarize emits one clause per metric that crosses a notable threshold.
// With nothing notable the month reads as balanced.
func summarize(m core.ScoreMetrics) string {
	var clauses []string

	switch {
	case m.SavingsRate > greatSavingsRate:
		clauses = append(clauses, "great savings")
	case m.SavingsRate < lowSavingsRate:
		clauses = append(clauses, "low savings")
	}
	if m.SubscriptionRatio > highSubscriptionRate {
		clauses = append(clauses, "high subscriptions")
	}
	if m.DebtLoad > highDebtLoad {
		clauses = append(clauses, "debt load")
	}
	if m.HighRiskSpending > highRiskShare {
		clauses = append(clauses, "high discretionary spending")
	}

	if len(clauses) == 0 {
		return "Balanced spending"
	}
	return strings.Join(clauses, ", ")
}
