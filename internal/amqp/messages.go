package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseCreatedMessage announces a newly created expense. It carries only
// identifiers; the link worker fetches the full record from the store.
type ExpenseCreatedMessage struct {
	ExpenseID int64     `json:"expense_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseCreatedMessage creates a message for one expense.
func NewExpenseCreatedMessage(expenseID, userID int64) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		ExpenseID: expenseID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON creates a message from JSON bytes.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
