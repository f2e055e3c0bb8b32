package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// Monthly billing drifts with calendar length, so the accepted average gap
// band is 25-35 days inclusive. Quarterly, annual and ad-hoc repeats fall
// outside it.
const (
	MinMonthlyGapDays = 25.0
	MaxMonthlyGapDays = 35.0
)

// Cluster is a group of expenses sharing a normalized (title, amount-bucket)
// key, candidate for being one recurring subscription.
type Cluster struct {
	Key      string
	Expenses []core.Expense // sorted by date ascending
}

func clusterKey(e core.Expense) string {
	return fmt.Sprintf("%s_%d", strings.ToLower(e.Title), e.Amount.BucketUnits())
}

// ClusterExpenses groups expenses by lowercased title and 100-unit amount
// bucket. Pure: it never touches the store. Clusters come back sorted by key
// and each cluster's members sorted by date, so repeated runs over the same
// input produce identical output.
func ClusterExpenses(expenses []core.Expense) []Cluster {
	groups := make(map[string][]core.Expense)
	for _, e := range expenses {
		key := clusterKey(e)
		groups[key] = append(groups[key], e)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clusters := make([]Cluster, 0, len(keys))
	for _, key := range keys {
		members := groups[key]
		sort.Slice(members, func(i, j int) bool {
			if !members[i].Date.Equal(members[j].Date.Time) {
				return members[i].Date.Before(members[j].Date.Time)
			}
			return members[i].ID < members[j].ID
		})
		clusters = append(clusters, Cluster{Key: key, Expenses: members})
	}
	return clusters
}

// MonthlyInterval returns the average day gap between consecutive
// occurrences and whether it falls in the accepted monthly band. Clusters
// with a single member are never monthly.
func (c Cluster) MonthlyInterval() (float64, bool) {
	if len(c.Expenses) < 2 {
		return 0, false
	}
	dates := make([]time.Time, len(c.Expenses))
	for i, e := range c.Expenses {
		dates[i] = e.Date.Time
	}
	avg := core.Mean(core.DayGaps(dates))
	return avg, avg >= MinMonthlyGapDays && avg <= MaxMonthlyGapDays
}

// DetectionService runs batch subscription detection for one user at a time.
// It holds no mutable state, so separate users can be processed in parallel.
type DetectionService struct {
	store Store
}

func NewDetectionService(store Store) *DetectionService {
	return &DetectionService{store: store}
}

// DetectSubscriptions clusters the user's non-recurring expenses, classifies
// each cluster against the monthly band and persists the accepted ones.
// Already-linked expenses are excluded up front, which makes repeated runs
// over unchanged data a no-op.
//
// Each accepted cluster is registered in its own transaction; one cluster's
// failure does not abort the others. The returned error joins the failures,
// alongside whatever subscriptions were created successfully.
func (s *DetectionService) DetectSubscriptions(ctx context.Context, userID int64) ([]core.Subscription, error) {
	recurring := false
	expenses, err := s.store.FindExpenses(ctx, ExpenseFilter{UserID: userID, Recurring: &recurring})
	if err != nil {
		return nil, fmt.Errorf("find non-recurring expenses: %w", err)
	}

	clusters := ClusterExpenses(expenses)

	var created []core.Subscription
	var errs []error

	for _, cluster := range clusters {
		avg, ok := cluster.MonthlyInterval()
		if !ok {
			continue
		}

		first := cluster.Expenses[0]
		last := cluster.Expenses[len(cluster.Expenses)-1]

		ids := make([]int64, len(cluster.Expenses))
		for i, e := range cluster.Expenses {
			ids[i] = e.ID
		}

		sub := core.Subscription{
			ID:            uuid.NewString(),
			UserID:        userID,
			Name:          first.Title,
			Amount:        first.Amount,
			Interval:      core.Monthly,
			LastChargedAt: last.Date,
			NextDueDate:   last.Date.AddDays(int(math.Round(avg))),
			Active:        true,
			Source:        core.SourceAutoDetected,
			ExpenseIDs:    ids,
		}

		if err := s.store.CreateSubscription(ctx, sub); err != nil {
			errs = append(errs, fmt.Errorf("register cluster %q: %w", cluster.Key, err))
			continue
		}

		created = append(created, sub)
		slog.InfoContext(ctx, "Detected monthly subscription",
			"user_id", userID,
			"subscription_id", sub.ID,
			"name", sub.Name,
			"amount_cents", sub.Amount.Cents,
			"members", len(ids),
			"avg_gap_days", avg)
	}

	slog.InfoContext(ctx, "Subscription detection complete",
		"user_id", userID,
		"clusters", len(clusters),
		"detected", len(created),
		"failed", len(errs))

	return created, errors.Join(errs...)
}
