// Package worker drives the engine from schedules and queues: the detect
// worker fans batch detection and score refresh out across users, the link
// worker reacts to expense-created events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/services"
)

// DetectWorker runs batch subscription detection and monthly score refresh
// for every known user. Users are processed in parallel up to the configured
// concurrency; the engine itself never parallelizes within one user's data.
type DetectWorker struct {
	store       services.Store
	detector    *services.DetectionService
	scorer      *services.ScoreService
	concurrency int
	scoreDay    int // day of month on which scores are refreshed

	mu           sync.Mutex
	lastScoreRun time.Time
}

func NewDetectWorker(store services.Store, detector *services.DetectionService, scorer *services.ScoreService, concurrency, scoreDay int) *DetectWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DetectWorker{
		store:       store,
		detector:    detector,
		scorer:      scorer,
		concurrency: concurrency,
		scoreDay:    scoreDay,
	}
}

// RunDetection runs subscription detection for all users. One user's failure
// never aborts the others; the returned error joins the per-user failures
// and the count reports subscriptions created across all users.
func (w *DetectWorker) RunDetection(ctx context.Context) (int, error) {
	userIDs, err := w.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		errs     []error
		detected int
	)
	g.SetLimit(w.concurrency)

	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			subs, err := w.detector.DetectSubscriptions(ctx, userID)

			mu.Lock()
			defer mu.Unlock()
			detected += len(subs)
			if err != nil {
				errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			}
			return nil
		})
	}
	g.Wait()

	slog.InfoContext(ctx, "Detection sweep complete",
		"users", len(userIDs),
		"subscriptions_created", detected,
		"failed_users", len(errs))

	return detected, errors.Join(errs...)
}

// RefreshScores recomputes and upserts the smart score of the month
// containing now for all users.
func (w *DetectWorker) RefreshScores(ctx context.Context, now time.Time) (int, error) {
	userIDs, err := w.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	year, month := now.Year(), int(now.Month())

	var (
		g       errgroup.Group
		mu      sync.Mutex
		errs    []error
		updated int
	)
	g.SetLimit(w.concurrency)

	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			_, err := w.scorer.StoreScore(ctx, userID, year, month)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			} else {
				updated++
			}
			return nil
		})
	}
	g.Wait()

	w.mu.Lock()
	w.lastScoreRun = now
	w.mu.Unlock()

	slog.InfoContext(ctx, "Score refresh complete",
		"users", len(userIDs),
		"scores_updated", updated,
		"failed_users", len(errs),
		"year", year,
		"month", month)

	return updated, errors.Join(errs...)
}

// ScoreDue reports whether the monthly score refresh should run: it is the
// configured day of the month and no refresh has run yet today.
func (w *DetectWorker) ScoreDue(now time.Time) bool {
	if now.Day() != w.scoreDay {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ly, lm, ld := w.lastScoreRun.Date()
	y, m, d := now.Date()
	return ly != y || lm != m || ld != d
}
