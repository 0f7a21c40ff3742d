package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CategorizeJobMessage asks a worker to categorize the pending
// transactions of one bank account. It carries only the account ID; the
// worker loads the transactions from the database itself.
type CategorizeJobMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	AccountID int64     `json:"account_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCategorizeJobMessage creates a job message with a fresh job ID.
func NewCategorizeJobMessage(accountID int64) *CategorizeJobMessage {
	return &CategorizeJobMessage{
		JobID:     uuid.New(),
		AccountID: accountID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *CategorizeJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CategorizeJobMessageFromJSON creates a message from JSON bytes.
func CategorizeJobMessageFromJSON(data []byte) (*CategorizeJobMessage, error) {
	var msg CategorizeJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
