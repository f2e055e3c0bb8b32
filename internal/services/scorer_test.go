package services_test

import (
	"context"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newScorer(t *testing.T, repo *storage.MemoryRepository) *services.ScoreService {
	t.Helper()
	// Cache disabled so every call recomputes from the store.
	scorer, err := services.NewScoreService(repo, 0)
	if err != nil {
		t.Fatalf("NewScoreService: %v", err)
	}
	return scorer
}

func addMonthExpense(t *testing.T, repo *storage.MemoryRepository, cents int64, category string) {
	t.Helper()
	_, err := repo.AddExpense(core.Expense{
		UserID:   testUserID,
		Title:    "expense",
		Amount:   core.Money{Cents: cents},
		Date:     core.NewDate(2024, 5, 10),
		Category: category,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
}

func addMonthIncome(t *testing.T, repo *storage.MemoryRepository, cents int64) {
	t.Helper()
	_, err := repo.AddIncome(core.Income{
		UserID: testUserID,
		Amount: core.Money{Cents: cents},
		Date:   core.NewDate(2024, 5, 1),
	})
	if err != nil {
		t.Fatalf("AddIncome: %v", err)
	}
}

func TestScoreService_IncomeFloor(t *testing.T) {
	repo := newTestRepo(t) // user has no salary
	addMonthExpense(t, repo, 10000, "Food")

	score, err := newScorer(t, repo).Calculate(context.Background(), testUserID, 2024, 5)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	// Expense exceeds the floored income of 1, so the savings rate clamps
	// to 0 instead of failing on a zero division.
	if score.Metrics.SavingsRate != 0 {
		t.Errorf("SavingsRate = %v, want 0", score.Metrics.SavingsRate)
	}
	if score.Score < 0 || score.Score > 100 {
		t.Errorf("Score = %d, want within [0,100]", score.Score)
	}
}

func TestScoreService_SalaryFallback(t *testing.T) {
	repo := storage.NewMemoryRepository()
	repo.AddUser(core.User{ID: testUserID, Name: "tester", Salary: core.Money{Cents: 100000}})
	addMonthExpense(t, repo, 10000, "Food")

	score, err := newScorer(t, repo).Calculate(context.Background(), testUserID, 2024, 5)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	// 1000 salary, 100 spent: savings rate 90.
	if score.Metrics.SavingsRate != 90 {
		t.Errorf("SavingsRate = %v, want 90", score.Metrics.SavingsRate)
	}
}

func TestScoreService_Bounds(t *testing.T) {
	tests := []struct {
		name string
		seed func(t *testing.T, repo *storage.MemoryRepository)
	}{
		{"no data at all", func(t *testing.T, repo *storage.MemoryRepository) {}},
		{
			name: "crushing debt and subscriptions",
			seed: func(t *testing.T, repo *storage.MemoryRepository) {
				addMonthIncome(t, repo, 10000)
				addMonthExpense(t, repo, 500000, "Shopping")
				if _, err := repo.AddDebt(core.Debt{
					UserID:    testUserID,
					Direction: core.DebtTaken,
					Total:     core.Money{Cents: 10000000},
					Remaining: core.Money{Cents: 10000000},
				}); err != nil {
					t.Fatalf("AddDebt: %v", err)
				}
				addSubscription(t, repo, "sub-1", "Everything", 400000)
			},
		},
		{
			name: "healthy month",
			seed: func(t *testing.T, repo *storage.MemoryRepository) {
				addMonthIncome(t, repo, 1000000)
				addMonthExpense(t, repo, 50000, "Food")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)
			tt.seed(t, repo)

			score, err := newScorer(t, repo).Calculate(context.Background(), testUserID, 2024, 5)
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if score.Score < 0 || score.Score > 100 {
				t.Errorf("Score = %d, want within [0,100]", score.Score)
			}
		})
	}
}

func TestScoreService_ExpenseMonotonicity(t *testing.T) {
	prev := 101
	for _, expenseCents := range []int64{10000, 50000, 90000, 200000} {
		repo := newTestRepo(t)
		addMonthIncome(t, repo, 100000)
		addMonthExpense(t, repo, expenseCents, "Food")

		score, err := newScorer(t, repo).Calculate(context.Background(), testUserID, 2024, 5)
		if err != nil {
			t.Fatalf("Calculate() error = %v", err)
		}
		if score.Score > prev {
			t.Errorf("score rose to %d from %d as spending grew", score.Score, prev)
		}
		prev = score.Score
	}
}

func TestScoreService_DebtMonotonicity(t *testing.T) {
	prev := 101
	for _, remaining := range []int64{0, 20000, 60000, 200000} {
		repo := newTestRepo(t)
		addMonthIncome(t, repo, 100000)
		addMonthExpense(t, repo, 30000, "Food")
		if remaining > 0 {
			if _, err := repo.AddDebt(core.Debt{
				UserID:    testUserID,
				Direction: core.DebtTaken,
				Total:     core.Money{Cents: remaining},
				Remaining: core.Money{Cents: remaining},
			}); err != nil {
				t.Fatalf("AddDebt: %v", err)
			}
		}

		score, err := newScorer(t, repo).Calculate(context.Background(), testUserID, 2024, 5)
		if err != nil {
			t.Fatalf("Calculate() error = %v", err)
		}
		if score.Score > prev {
			t.Errorf("score rose to %d from %d as debt grew", score.Score, prev)
		}
		prev = score.Score
	}
}

func TestScoreService_GivenDebtIgnored(t *testing.T) {
	repo := newTestRepo(t)
	addMonthIncome(t, repo, 100000)
	if _, err := repo.AddDebt(core.Debt{
		UserID:    testUserID,
		Direction: core.DebtGiven,
		Total:     core.Money{Cents: 500000},
		Remaining: core.Money{Cents: 500000},
	}); err != nil {
		t.Fatalf("AddDebt: %v", err)
	}

	score, err := newScorer(t, repo).Calculate(context.Background(), testUserID, 2024, 5)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if score.Metrics.DebtLoad != 0 {
		t.Errorf("DebtLoad = %v, want 0 for money lent out", score.Metrics.DebtLoad)
	}
}

func TestScoreService_Summary(t *testing.T) {
	tests := []struct {
		name string
		seed func(t *testing.T, repo *storage.MemoryRepository)
		want string
	}{
		{
			name: "great savings",
			seed: func(t *testing.T, repo *storage.MemoryRepository) {
				addMonthIncome(t, repo, 100000)
				addMonthExpense(t, repo, 10000, "Food")
			},
			want: "great savings",
		},
		{
			name: "everything notable at once",
			seed: func(t *testing.T, repo *storage.MemoryRepository) {
				addMonthIncome(t, repo, 100000)
				addMonthExpense(t, repo, 95000, "Entertainment")
				addSubscription(t, repo, "sub-1", "Everything", 25000)
				if _, err := repo.AddDebt(core.Debt{
					UserID:    testUserID,
					Direction: core.DebtTaken,
					Total:     core.Money{Cents: 40000},
					Remaining: core.Money{Cents: 40000},
				}); err != nil {
					t.Fatalf("AddDebt: %v", err)
				}
			},
			want: "low savings, high subscriptions, debt load, high discretionary spending",
		},
		{
			name: "nothing notable",
			seed: func(t *testing.T, repo *storage.MemoryRepository) {
				addMonthIncome(t, repo, 100000)
				addMonthExpense(t, repo, 85000, "Food")
			},
			want: "Balanced spending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)
			tt.seed(t, repo)

			score, err := newScorer(t, repo).Calculate(context.Background(), testUserID, 2024, 5)
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if score.Summary != tt.want {
				t.Errorf("Summary = %q, want %q", score.Summary, tt.want)
			}
		})
	}
}

func TestScoreService_StoreScoreUpserts(t *testing.T) {
	repo := newTestRepo(t)
	addMonthIncome(t, repo, 100000)
	addMonthExpense(t, repo, 10000, "Food")

	scorer := newScorer(t, repo)
	first, err := scorer.StoreScore(context.Background(), testUserID, 2024, 5)
	if err != nil {
		t.Fatalf("StoreScore() error = %v", err)
	}

	// More spending lands in the store; recomputation must overwrite the
	// existing row, not add a second one.
	addMonthExpense(t, repo, 80000, "Shopping")
	second, err := scorer.StoreScore(context.Background(), testUserID, 2024, 5)
	if err != nil {
		t.Fatalf("StoreScore() second error = %v", err)
	}

	if repo.ScoreCount() != 1 {
		t.Errorf("ScoreCount = %d, want 1 row per user-month", repo.ScoreCount())
	}
	stored, ok := repo.GetSmartScore(testUserID, 2024, 5)
	if !ok {
		t.Fatal("stored score not found")
	}
	if stored.Score != second.Score {
		t.Errorf("stored score = %d, want latest %d", stored.Score, second.Score)
	}
	if first.Score < second.Score {
		t.Errorf("score rose from %d to %d after extra spending", first.Score, second.Score)
	}
}
