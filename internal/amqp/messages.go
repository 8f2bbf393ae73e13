package amqp

import (
	"encoding/json"
	"time"
)

// ReconciliationCommittedMessage announces one committed reconciliation to the
// export worker. It carries only identifiers and the headline amount; the
// worker fetches the full register row from the database before exporting.
type ReconciliationCommittedMessage struct {
	ReconciliationID string    `json:"reconciliation_id"`
	InsurerID        int64     `json:"insurer_id"`
	Received         string    `json:"received"`
	TransactionCount int       `json:"transaction_count"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewReconciliationCommittedMessage(reconciliationID string, insurerID int64, received string, txCount int) *ReconciliationCommittedMessage {
	return &ReconciliationCommittedMessage{
		ReconciliationID: reconciliationID,
		InsurerID:        insurerID,
		Received:         received,
		TransactionCount: txCount,
		Timestamp:        time.Now(),
	}
}

func (m *ReconciliationCommittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReconciliationCommittedMessageFromJSON(data []byte) (*ReconciliationCommittedMessage, error) {
	var msg ReconciliationCommittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
