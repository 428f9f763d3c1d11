package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/gigchat/internal/models"
)

func TestConversationsAndHistory(t *testing.T) {
	router, db := setupTestRouter(t)
	alice, aliceToken := createUser(t, db, "Alice", "alice@example.com", "client")
	bob, _ := createUser(t, db, "Bob", "bob@example.com", "freelancer")
	carol, _ := createUser(t, db, "Carol", "carol@example.com", "freelancer")

	_, err := db.CreateMessage(alice.ID, bob.ID, "P1", "hi bob")
	require.NoError(t, err)
	_, err = db.CreateMessage(bob.ID, alice.ID, "P1", "hi alice")
	require.NoError(t, err)
	_, err = db.CreateMessage(carol.ID, alice.ID, "", "hello from carol")
	require.NoError(t, err)

	w := doJSON(router, http.MethodGet, "/api/v1/chat/conversations", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	conversations := decodeData[[]models.UserSummary](t, w)
	require.Len(t, conversations, 2)
	assert.Equal(t, carol.ID, conversations[0].ID)
	assert.Equal(t, "Carol", conversations[0].Name)
	assert.Equal(t, bob.ID, conversations[1].ID)

	w = doJSON(router, http.MethodGet, "/api/v1/chat/history/"+bob.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decodeData[[]models.Message](t, w)
	require.Len(t, history, 2)
	assert.Equal(t, "hi bob", history[0].Body)
	assert.Equal(t, alice.ID, history[0].SenderID.ID)
	assert.Equal(t, "Alice", history[0].SenderID.Name())
	assert.Equal(t, bob.ID, history[0].ReceiverID.ID)
	assert.Nil(t, history[0].ReceiverID.User)
	assert.Equal(t, "Bob", history[1].SenderID.Name())
}

func TestHistoryUnknownParticipant(t *testing.T) {
	router, db := setupTestRouter(t)
	_, token := createUser(t, db, "Alice", "alice@example.com", "client")

	w := doJSON(router, http.MethodGet, "/api/v1/chat/history/ghost", token, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decodeEnvelope(t, w).Message)
}

func TestConversationsEmpty(t *testing.T) {
	router, db := setupTestRouter(t)
	_, token := createUser(t, db, "Alice", "alice@example.com", "client")

	w := doJSON(router, http.MethodGet, "/api/v1/chat/conversations", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}
