package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"lifehub/internal/core"
)

// EventMessage is the wire form of a core.Event. It carries identifiers
// only; consumers load the records they need from storage.
type EventMessage struct {
	core.Event
	Timestamp time.Time `json:"timestamp"`
}

func NewEventMessage(evt core.Event) *EventMessage {
	return &EventMessage{Event: evt, Timestamp: time.Now()}
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and rejects events without an id,
// type or user.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.Type == "" || msg.UserID == "" {
		return nil, errors.New("event message missing id, type or user")
	}
	return &msg, nil
}
