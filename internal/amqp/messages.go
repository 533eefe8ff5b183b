package amqp

import (
	"encoding/json"
	"time"
)

// Message types, carried in the AMQP Type property.
const (
	TypeSync   = "transaction.sync"
	TypeDelete = "transaction.delete"
)

// SyncMessage tells the worker a transaction changed. It carries only the id
// and version; the worker reads the record from the database.
type SyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncMessage(id string, version int64) *SyncMessage {
	return &SyncMessage{ID: id, Version: version, Timestamp: time.Now()}
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage tells the worker a transaction is gone.
type DeleteMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDeleteMessage(id string) *DeleteMessage {
	return &DeleteMessage{ID: id, Timestamp: time.Now()}
}

func (m *DeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DeleteMessageFromJSON(data []byte) (*DeleteMessage, error) {
	var msg DeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
