package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/gigchat/internal/conversation"
	"github.com/ammar1510/gigchat/internal/marketplace"
	"github.com/ammar1510/gigchat/internal/models"
	"github.com/ammar1510/gigchat/internal/socket"
)

// gatedAPI serves one project owned by U1 with two conversations. History
// for U3 waits until gate is closed.
type gatedAPI struct {
	gate chan struct{}
}

func (a *gatedAPI) Project(ctx context.Context, id string) (models.Project, error) {
	return models.Project{ID: id, Owner: models.Ref("U1")}, nil
}

func (a *gatedAPI) ProjectBids(ctx context.Context, id string) ([]models.Bid, error) {
	return nil, nil
}

func (a *gatedAPI) Conversations(ctx context.Context) ([]models.UserSummary, error) {
	return []models.UserSummary{{ID: "U2", Name: "Fred"}, {ID: "U3", Name: "Sam"}}, nil
}

func (a *gatedAPI) History(ctx context.Context, participantID string) ([]models.Message, error) {
	if participantID == "U3" {
		<-a.gate
	}
	return []models.Message{{
		ID:         "h-" + participantID,
		SenderID:   models.Ref(participantID),
		ReceiverID: models.Ref("U1"),
		Body:       "from " + participantID,
	}}, nil
}

type idleSocket struct {
	events chan socket.Event
}

func (s *idleSocket) Events() <-chan socket.Event { return s.events }
func (s *idleSocket) Emit(name string, payload any) error { return nil }
func (s *idleSocket) State() socket.State { return socket.StateConnected }
func (s *idleSocket) Close() error { return nil }

func TestSelectDoesNotBlockInput(t *testing.T) {
	api := &gatedAPI{gate: make(chan struct{})}
	manager, err := conversation.NewManager(conversation.Options{
		ProjectID: "P1",
		Session:   marketplace.NewSession("tok", "U1"),
		API:       api,
		Socket:    &idleSocket{events: make(chan socket.Event)},
		Notifier:  conversation.NotifierFunc(func(conversation.Notification) {}),
	})
	require.NoError(t, err)
	defer manager.Close()
	require.NoError(t, manager.Start(t.Context()))

	var out bytes.Buffer
	v := newView(&out, "U1")

	returned := make(chan struct{})
	go func() {
		handleLine(t.Context(), "/select 2", manager, nil, v)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("/select blocked on the history fetch")
	}

	assert.Eventually(t, func() bool {
		active, ok := manager.Active()
		return ok && active.ID == "U3"
	}, time.Second, 5*time.Millisecond)

	// Switch back while U3's history is still loading.
	handleLine(t.Context(), "/select U2", manager, nil, v)
	assert.Eventually(t, func() bool {
		snapshot := manager.Snapshot()
		return snapshot.Active == "U2" && snapshot.State == conversation.StateThreadOpen
	}, time.Second, 5*time.Millisecond)

	close(api.gate)
	time.Sleep(50 * time.Millisecond)

	active, ok := manager.Active()
	require.True(t, ok)
	assert.Equal(t, "U2", active.ID)
	messages := manager.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "h-U2", messages[0].ID)
}

func TestHandleLineCommands(t *testing.T) {
	var out bytes.Buffer
	v := newView(&out, "U1")

	assert.True(t, handleLine(context.Background(), "/quit", nil, nil, v))
	assert.False(t, handleLine(context.Background(), "   ", nil, nil, v))
	assert.False(t, handleLine(context.Background(), "/upload", nil, nil, v))
	assert.Equal(t, "Usage: /upload <path>\n", out.String())
}
