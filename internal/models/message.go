package models

import (
	"encoding/json"
	"time"
)

// Message represents a chat message between two users on a project
type Message struct {
	ID         string    `json:"_id"`
	SenderID   UserRef   `json:"senderId"`
	ReceiverID UserRef   `json:"receiverId"`
	Body       string    `json:"message"`
	ProjectID  string    `json:"projectId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts "_id" or "id", string or numeric, for the message id.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var decoded struct {
		plain
		ID json.RawMessage `json:"_id"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*m = Message(decoded.plain)
	m.ID = ResolveID(data)
	return nil
}

// SendMessagePayload is the body of the send_message socket event
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
	ProjectID  string `json:"projectId"`
}
