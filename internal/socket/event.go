package socket

import (
	"encoding/json"
	"fmt"
)

// Event names used on the chat socket.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"

	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventMessageSent    = "message_sent"
	EventError          = "error"
)

// Event is one frame on the socket, carried on the wire as
// {"event": "<name>", "data": <payload>}. Lifecycle events (connect,
// disconnect, connect_error) are synthesised locally by the Client.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes payload as the event data.
func NewEvent(name string, payload any) (Event, error) {
	event := Event{Name: name}
	if payload == nil {
		return event, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("socket: encoding %s payload: %w", name, err)
	}
	event.Data = data
	return event, nil
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("socket: %s event has no data", e.Name)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("socket: decoding %s payload: %w", e.Name, err)
	}
	return nil
}

// State is the connection state of a Client
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
