package conversation

import (
	"fmt"

	"github.com/ammar1510/gigchat/internal/models"
	"github.com/ammar1510/gigchat/internal/socket"
)

// listen consumes socket events until Close or until the socket's event
// stream ends.
func (m *Manager) listen() {
	defer close(m.loopDone)

	events := m.socket.Events()
	for {
		select {
		case <-m.stop:
			return
		case event, ok := <-events:
			if !ok {
				m.setConnected(false)
				return
			}
			m.handleEvent(event)
		}
	}
}

func (m *Manager) handleEvent(event socket.Event) {
	switch event.Name {
	case socket.EventConnect:
		m.setConnected(true)
	case socket.EventDisconnect, socket.EventConnectError:
		log.Warn("Socket %s: %s", event.Name, string(event.Data))
		m.setConnected(false)
	case socket.EventReceiveMessage:
		var msg models.Message
		if err := event.Decode(&msg); err != nil {
			log.Warn("Dropping malformed %s event: %v", event.Name, err)
			return
		}
		m.receive(msg)
	case socket.EventMessageSent:
		var msg models.Message
		if err := event.Decode(&msg); err != nil {
			log.Warn("Dropping malformed %s event: %v", event.Name, err)
			return
		}
		m.mu.Lock()
		m.appendLocked(msg)
		m.mu.Unlock()
	case socket.EventError:
		var payload struct {
			Message string `json:"message"`
		}
		if err := event.Decode(&payload); err != nil || payload.Message == "" {
			payload.Message = "Message could not be delivered"
		}
		log.Warn("Socket error event: %s", payload.Message)
		m.notifier.Notify(Notification{Kind: NotifyError, Message: payload.Message})
	default:
		log.Debug("Ignoring socket event %q", event.Name)
	}
}

// receive appends an inbound message to the open thread when it comes from
// the active participant and raises a notification otherwise.
func (m *Manager) receive(msg models.Message) {
	sender := msg.SenderID.ID

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.active != "" && sender == m.active {
		m.appendLocked(msg)
		m.mu.Unlock()
		return
	}
	name := msg.SenderID.Name()
	if p, ok := m.participantLocked(sender); ok {
		name = p.DisplayName()
	}
	if name == "" {
		name = sender
	}
	m.mu.Unlock()

	m.notifier.Notify(Notification{
		Kind:     NotifyInfo,
		Message:  fmt.Sprintf("New message from %s", name),
		SenderID: sender,
	})
}

func (m *Manager) appendLocked(msg models.Message) {
	if m.closed {
		return
	}
	m.messages = append(m.messages, msg)
	if m.state == StateLoadingHistory {
		m.pending = append(m.pending, msg)
	}
	m.changedLocked()
}

func (m *Manager) setConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.connected == connected {
		return
	}
	m.connected = connected
	m.changedLocked()
}
