package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ammar1510/gigchat/internal/logger"
)

// echoServer upgrades every request, records the token, and answers each
// send_message frame with a message_sent frame carrying the same data.
type echoServer struct {
	*httptest.Server
	tokens chan string
	conns  chan *websocket.Conn
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	s := &echoServer{
		tokens: make(chan string, 8),
		conns:  make(chan *websocket.Conn, 8),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.tokens <- r.URL.Query().Get("token")
		s.conns <- conn
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var event Event
			if json.Unmarshal(frame, &event) != nil {
				continue
			}
			if event.Name == EventSendMessage {
				event.Name = EventMessageSent
				conn.WriteJSON(event)
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/socket"
}

func nextEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case event, ok := <-client.Events():
		require.True(t, ok, "event stream closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event")
	}
	return Event{}
}

func waitClosed(t *testing.T, client *Client) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-client.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Timeout waiting for event stream to close")
		}
	}
}

func TestConnectValidatesConfig(t *testing.T) {
	_, err := Connect(Config{})
	assert.Error(t, err)

	_, err = Connect(Config{URL: "://bad"})
	assert.Error(t, err)
}

func TestConnectAndEcho(t *testing.T) {
	server := newEchoServer(t)

	client, err := Connect(Config{URL: server.wsURL(), Token: "tok"})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, EventConnect, nextEvent(t, client).Name)
	assert.Equal(t, StateConnected, client.State())
	assert.Equal(t, "tok", <-server.tokens)

	payload := map[string]string{"receiverId": "u2", "message": "hi", "projectId": "p1"}
	require.NoError(t, client.Emit(EventSendMessage, payload))

	echo := nextEvent(t, client)
	assert.Equal(t, EventMessageSent, echo.Name)
	var got map[string]string
	require.NoError(t, echo.Decode(&got))
	assert.Equal(t, payload, got)
}

func TestStateChangesAreLogged(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(zap.NewNop()) })

	server := newEchoServer(t)
	client, err := Connect(Config{URL: server.wsURL()})
	require.NoError(t, err)
	assert.Equal(t, EventConnect, nextEvent(t, client).Name)
	require.NoError(t, client.Close())

	var states []string
	for _, entry := range recorded.FilterMessage("Connection state changed").All() {
		states = append(states, entry.ContextMap()["state"].(string))
	}
	assert.Equal(t, []string{"connecting", "connected", "disconnected"}, states)
}

func TestConnectErrorWithoutReconnect(t *testing.T) {
	server := newEchoServer(t)
	url := server.wsURL()
	server.Close()

	client, err := Connect(Config{URL: url})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, EventConnectError, nextEvent(t, client).Name)
	waitClosed(t, client)
	assert.Equal(t, StateDisconnected, client.State())
	assert.ErrorIs(t, client.Emit(EventSendMessage, map[string]string{}), ErrNotConnected)
}

func TestReconnectAfterServerDrop(t *testing.T) {
	server := newEchoServer(t)

	client, err := Connect(Config{
		URL:               server.wsURL(),
		Reconnect:         true,
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, EventConnect, nextEvent(t, client).Name)
	first := <-server.conns
	first.Close()

	assert.Equal(t, EventDisconnect, nextEvent(t, client).Name)
	assert.Equal(t, EventConnect, nextEvent(t, client).Name)
	assert.Equal(t, StateConnected, client.State())
}

func TestCloseEndsEventStream(t *testing.T) {
	server := newEchoServer(t)

	client, err := Connect(Config{URL: server.wsURL(), Reconnect: true})
	require.NoError(t, err)
	assert.Equal(t, EventConnect, nextEvent(t, client).Name)

	require.NoError(t, client.Close())
	waitClosed(t, client)
	assert.Equal(t, StateDisconnected, client.State())
	assert.ErrorIs(t, client.Emit(EventSendMessage, nil), ErrClosed)

	// second Close is a no-op
	assert.NoError(t, client.Close())
}

func TestMalformedFramesAreDropped(t *testing.T) {
	server := newEchoServer(t)

	client, err := Connect(Config{URL: server.wsURL()})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, EventConnect, nextEvent(t, client).Name)

	conn := <-server.conns
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
	require.NoError(t, conn.WriteJSON(Event{Name: EventReceiveMessage, Data: json.RawMessage(`{"_id":"m1"}`)}))

	event := nextEvent(t, client)
	assert.Equal(t, EventReceiveMessage, event.Name)
	assert.JSONEq(t, `{"_id":"m1"}`, string(event.Data))
}

func TestEventHelpers(t *testing.T) {
	event, err := NewEvent(EventSendMessage, map[string]string{"message": "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hi"}`, string(event.Data))

	var decoded struct {
		Message string `json:"message"`
	}
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, "hi", decoded.Message)

	empty, err := NewEvent(EventConnect, nil)
	require.NoError(t, err)
	assert.Error(t, empty.Decode(&decoded))

	_, err = NewEvent(EventSendMessage, make(chan int))
	assert.Error(t, err)

	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "State(9)", State(9).String())
}
