package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/services"
)

// LinkWorker handles expense-created events by trying to attach each new
// expense to one of its user's active subscriptions.
type LinkWorker struct {
	linker *services.Linker
}

func NewLinkWorker(linker *services.Linker) *LinkWorker {
	return &LinkWorker{linker: linker}
}

// HandleExpenseCreated processes a single expense-created message. A
// returned error makes the consumer requeue the message.
func (w *LinkWorker) HandleExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	slog.InfoContext(ctx, "Processing expense-created message",
		"expense_id", msg.ExpenseID,
		"user_id", msg.UserID)

	if err := w.linker.LinkExpense(ctx, msg.ExpenseID); err != nil {
		return fmt.Errorf("link expense %d: %w", msg.ExpenseID, err)
	}
	return nil
}
