package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TransactionRecordedMessage announces a newly stored transaction. It carries
// only the id; consumers fetch the full row from the store.
type TransactionRecordedMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(id string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON decodes a message and rejects empty ids.
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("message has no transaction id")
	}
	return &msg, nil
}
