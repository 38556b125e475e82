package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage signals that the contract ledger of a project was
// mutated and its budget totals were recomputed. The worker re-runs the
// rollup on reception so concurrent writers converge on the newest ledger
// state.
type LedgerChangedMessage struct {
	ProjectID string    `json:"project_id"`
	Entity    string    `json:"entity"` // contract, change_order, invoice, payment
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(projectID, entity string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		ProjectID: projectID,
		Entity:    entity,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
