package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ammar1510/gigchat/internal/database"
	"github.com/ammar1510/gigchat/internal/logger"
	"github.com/ammar1510/gigchat/internal/models"
	"github.com/ammar1510/gigchat/internal/socket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024

	// DefaultMessagesPerMinute is the per-connection send_message allowance.
	DefaultMessagesPerMinute = 60
)

var log = logger.New("websocket")

// Client represents a connected websocket client
type Client struct {
	UserID  string
	Socket  *websocket.Conn
	Send    chan []byte
	limiter *rate.Limiter
}

// Manager maintains the set of active clients and relays chat messages
// between them.
type Manager struct {
	store             database.Store
	messagesPerMinute int

	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.Mutex
}

// NewManager creates a new websocket manager. messagesPerMinute <= 0 uses
// DefaultMessagesPerMinute.
func NewManager(store database.Store, messagesPerMinute int) *Manager {
	if messagesPerMinute <= 0 {
		messagesPerMinute = DefaultMessagesPerMinute
	}
	return &Manager{
		store:             store,
		messagesPerMinute: messagesPerMinute,
		clients:           make(map[string]map[*Client]bool),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		done:              make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled, then disconnects
// every client.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			if m.clients[client.UserID] == nil {
				m.clients[client.UserID] = make(map[*Client]bool)
			}
			m.clients[client.UserID][client] = true
			m.mutex.Unlock()
			log.Info("Client connected: %s", client.UserID)
		case client := <-m.unregister:
			m.mutex.Lock()
			m.removeLocked(client)
			m.mutex.Unlock()
			log.Info("Client disconnected: %s", client.UserID)
		case <-ctx.Done():
			close(m.done)
			m.mutex.Lock()
			for _, conns := range m.clients {
				for client := range conns {
					m.removeLocked(client)
				}
			}
			m.mutex.Unlock()
			return
		}
	}
}

func (m *Manager) removeLocked(client *Client) {
	conns, ok := m.clients[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	close(client.Send)
	if len(conns) == 0 {
		delete(m.clients, client.UserID)
	}
}

// Connected reports whether userID has at least one live connection.
func (m *Manager) Connected(userID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.clients[userID]) > 0
}

// SendToUser delivers an event to every connection of userID.
func (m *Manager) SendToUser(userID string, event socket.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		log.Error("Failed to encode %s event: %v", event.Name, err)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	conns, ok := m.clients[userID]
	if !ok {
		log.Debug("User %s not connected", userID)
		return
	}
	for client := range conns {
		m.sendLocked(client, frame)
	}
}

func (m *Manager) send(client *Client, event socket.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		log.Error("Failed to encode %s event: %v", event.Name, err)
		return
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.clients[client.UserID][client] {
		m.sendLocked(client, frame)
	}
}

func (m *Manager) sendLocked(client *Client, frame []byte) {
	select {
	case client.Send <- frame:
	default:
		log.Warn("Send buffer full for user %s, removing client", client.UserID)
		m.removeLocked(client)
	}
}

func (m *Manager) sendError(client *Client, message string) {
	event, _ := socket.NewEvent(socket.EventError, gin.H{"message": message})
	m.send(client, event)
}

// HandleWebSocket upgrades an authenticated request. The user id must have
// been placed in the context under "userID".
func (m *Manager) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		log.Warn("No userID in context, rejecting connection from %s", c.Request.RemoteAddr)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins in development
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		UserID:  userID,
		Socket:  conn,
		Send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.messagesPerMinute)), m.messagesPerMinute),
	}

	select {
	case m.register <- client:
	case <-m.done:
		conn.Close()
		return
	}

	go client.readPump(m)
	go client.writePump()
	log.Debug("Client %s connected and ready", client.UserID)
}

// readPump pumps messages from the websocket connection to the manager
func (c *Client) readPump(m *Manager) {
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.done:
		}
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error("Error reading from client %s: %v", c.UserID, err)
			} else {
				log.Info("Client %s closed connection: %v", c.UserID, err)
			}
			return
		}

		var event socket.Event
		if err := json.Unmarshal(frame, &event); err != nil {
			log.Warn("Error unmarshaling frame from %s: %v", c.UserID, err)
			m.sendError(c, "Invalid message format")
			continue
		}

		switch event.Name {
		case socket.EventSendMessage:
			if !c.limiter.Allow() {
				log.Warn("Rate limit exceeded for client %s", c.UserID)
				m.sendError(c, "Rate limit exceeded")
				continue
			}
			m.relay(c, event)
		default:
			log.Warn("Unknown event '%s' from client %s", event.Name, c.UserID)
			m.sendError(c, "Unknown event")
		}
	}
}

// relay persists a send_message event, echoes it to the sending connection
// as message_sent and delivers it to the receiver as receive_message.
func (m *Manager) relay(c *Client, event socket.Event) {
	var payload models.SendMessagePayload
	if err := event.Decode(&payload); err != nil {
		m.sendError(c, "Invalid message format")
		return
	}
	body := strings.TrimSpace(payload.Message)
	switch {
	case payload.ReceiverID == "":
		m.sendError(c, "Invalid receiver ID")
		return
	case payload.ReceiverID == c.UserID:
		m.sendError(c, "Cannot message yourself")
		return
	case body == "":
		m.sendError(c, "Message cannot be empty")
		return
	}

	message, err := m.store.CreateMessage(c.UserID, payload.ReceiverID, payload.ProjectID, body)
	if errors.Is(err, database.ErrUserNotFound) {
		m.sendError(c, "Receiver not found")
		return
	}
	if err != nil {
		log.Error("Failed to store message from %s: %v", c.UserID, err)
		m.sendError(c, "Failed to send message")
		return
	}

	if sender, err := m.store.GetUserByID(c.UserID); err == nil {
		summary := sender.Summary()
		message.SenderID.User = &summary
	}

	outbound, err := socket.NewEvent(socket.EventReceiveMessage, message)
	if err != nil {
		log.Error("Failed to encode message %s: %v", message.ID, err)
		return
	}
	m.SendToUser(payload.ReceiverID, outbound)

	outbound.Name = socket.EventMessageSent
	m.send(c, outbound)
	log.Debug("Relayed message %s from %s to %s", message.ID, c.UserID, payload.ReceiverID)
}

// writePump pumps messages from the manager to the websocket connection.
// Every event goes out as its own frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The manager closed the channel
				c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
