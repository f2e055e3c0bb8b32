package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func seedMonthlySeries(t *testing.T, repo *storage.MemoryRepository, userID int64, title string) {
	t.Helper()
	for _, d := range []core.Date{
		core.NewDate(2024, 1, 5),
		core.NewDate(2024, 2, 4),
		core.NewDate(2024, 3, 6),
	} {
		_, err := repo.AddExpense(core.Expense{
			UserID:   userID,
			Title:    title,
			Amount:   core.Money{Cents: 49900},
			Date:     d,
			Category: "Entertainment",
		})
		if err != nil {
			t.Fatalf("AddExpense: %v", err)
		}
	}
}

func newWorker(t *testing.T, store services.Store, concurrency, scoreDay int) *DetectWorker {
	t.Helper()
	scorer, err := services.NewScoreService(store, 0)
	if err != nil {
		t.Fatalf("NewScoreService: %v", err)
	}
	return NewDetectWorker(store, services.NewDetectionService(store), scorer, concurrency, scoreDay)
}

func TestRunDetection_AllUsers(t *testing.T) {
	repo := storage.NewMemoryRepository()
	for id := int64(1); id <= 3; id++ {
		repo.AddUser(core.User{ID: id, Name: fmt.Sprintf("user-%d", id)})
		seedMonthlySeries(t, repo, id, "Netflix")
	}

	w := newWorker(t, repo, 2, 1)
	detected, err := w.RunDetection(context.Background())
	if err != nil {
		t.Fatalf("RunDetection() error = %v", err)
	}
	if detected != 3 {
		t.Errorf("detected = %d, want one subscription per user", detected)
	}

	for id := int64(1); id <= 3; id++ {
		subs, err := repo.FindActiveSubscriptions(context.Background(), id)
		if err != nil {
			t.Fatalf("FindActiveSubscriptions(%d): %v", id, err)
		}
		if len(subs) != 1 {
			t.Errorf("user %d has %d subscriptions, want 1", id, len(subs))
		}
	}
}

// userFailStore fails subscription creation for one user so a sweep can be
// checked for per-user isolation.
type userFailStore struct {
	services.Store
	failUserID int64
}

func (s *userFailStore) CreateSubscription(ctx context.Context, sub core.Subscription) error {
	if sub.UserID == s.failUserID {
		return fmt.Errorf("simulated failure for user %d", sub.UserID)
	}
	return s.Store.CreateSubscription(ctx, sub)
}

func TestRunDetection_UserFailureIsolated(t *testing.T) {
	repo := storage.NewMemoryRepository()
	for id := int64(1); id <= 3; id++ {
		repo.AddUser(core.User{ID: id, Name: fmt.Sprintf("user-%d", id)})
		seedMonthlySeries(t, repo, id, "Netflix")
	}

	w := newWorker(t, &userFailStore{Store: repo, failUserID: 2}, 2, 1)
	detected, err := w.RunDetection(context.Background())
	if err == nil {
		t.Fatal("RunDetection() error = nil, want joined user failure")
	}
	if detected != 2 {
		t.Errorf("detected = %d, want 2 from the healthy users", detected)
	}

	subs, _ := repo.FindActiveSubscriptions(context.Background(), 2)
	if len(subs) != 0 {
		t.Errorf("failing user ended up with %d subscriptions", len(subs))
	}
}

func TestRefreshScores(t *testing.T) {
	repo := storage.NewMemoryRepository()
	for id := int64(1); id <= 2; id++ {
		repo.AddUser(core.User{ID: id, Name: fmt.Sprintf("user-%d", id), Salary: core.Money{Cents: 100000}})
	}

	w := newWorker(t, repo, 2, 1)
	now := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	updated, err := w.RefreshScores(context.Background(), now)
	if err != nil {
		t.Fatalf("RefreshScores() error = %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}
	if repo.ScoreCount() != 2 {
		t.Errorf("ScoreCount = %d, want one row per user", repo.ScoreCount())
	}
	if _, ok := repo.GetSmartScore(1, 2024, 5); !ok {
		t.Error("score for user 1 not stored for the sweep month")
	}
}

func TestScoreDue(t *testing.T) {
	repo := storage.NewMemoryRepository()
	w := newWorker(t, repo, 1, 1)

	firstOfMonth := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	if !w.ScoreDue(firstOfMonth) {
		t.Error("ScoreDue() = false on the configured day before any run")
	}
	if w.ScoreDue(time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC)) {
		t.Error("ScoreDue() = true off the configured day")
	}

	if _, err := w.RefreshScores(context.Background(), firstOfMonth); err != nil {
		t.Fatalf("RefreshScores: %v", err)
	}
	if w.ScoreDue(firstOfMonth.Add(6 * time.Hour)) {
		t.Error("ScoreDue() = true again on the same day after a run")
	}
	if !w.ScoreDue(time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)) {
		t.Error("ScoreDue() = false on the next month's configured day")
	}
}
