package amqp

import (
	"encoding/json"
	"time"

	"spendview/internal/core"
)

// StatementBatchMessage carries one computed set of current billing-cycle
// balances. Consumers get the full payload so they never need a database
// round-trip.
type StatementBatchMessage struct {
	AsOf       string               `json:"as_of"`
	Statements []core.CardStatement `json:"statements"`
	Timestamp  time.Time            `json:"timestamp"`
}

// NewStatementBatchMessage wraps a statement set with its reference date.
func NewStatementBatchMessage(asOf time.Time, statements []core.CardStatement) *StatementBatchMessage {
	return &StatementBatchMessage{
		AsOf:       asOf.Format("2006-01-02"),
		Statements: statements,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StatementBatchMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StatementBatchMessageFromJSON creates a message from JSON bytes
func StatementBatchMessageFromJSON(data []byte) (*StatementBatchMessage, error) {
	var msg StatementBatchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
