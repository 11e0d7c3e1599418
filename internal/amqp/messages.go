package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	// TypeTransactionCreated announces a committed transaction (mirroring, notifications).
	TypeTransactionCreated = "transaction.created"
	// TypeTaskEnqueued asks a worker to run a background task right away.
	TypeTaskEnqueued = "task.enqueued"
)

// Message is the envelope carried on the queue. It only holds identifiers;
// consumers load the current state from the database.
type Message struct {
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	TaskID        string    `json:"task_id,omitempty"`
	TaskType      string    `json:"task_type,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(transactionID string) *Message {
	return &Message{
		Type:          TypeTransactionCreated,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func NewTaskEnqueuedMessage(taskID, taskType string) *Message {
	return &Message{
		Type:      TypeTaskEnqueued,
		TaskID:    taskID,
		TaskType:  taskType,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes a message and checks it carries a type.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errors.New("message type is missing")
	}
	return &msg, nil
}
