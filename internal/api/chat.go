package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/gigchat/internal/database"
	"github.com/ammar1510/gigchat/internal/models"
)

// ChatHandler serves conversation listings and message history
type ChatHandler struct {
	DB database.Store
}

// NewChatHandler creates a new chat handler
func NewChatHandler(db database.Store) *ChatHandler {
	return &ChatHandler{DB: db}
}

// GetConversations lists the users the caller has exchanged messages with,
// most recent first
func (h *ChatHandler) GetConversations(c *gin.Context) {
	partners, err := h.DB.GetConversationPartners(c.GetString("userID"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to retrieve conversations")
		return
	}

	summaries := make([]models.UserSummary, 0, len(partners))
	for _, partner := range partners {
		summaries = append(summaries, partner.Summary())
	}
	respond(c, http.StatusOK, summaries)
}

// GetHistory returns the messages between the caller and a participant,
// oldest first. Senders are embedded; receivers are sent as bare ids.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID := c.GetString("userID")
	participantID := c.Param("participantId")

	if _, err := h.DB.GetUserByID(participantID); errors.Is(err, database.ErrUserNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}

	messages, err := h.DB.GetConversation(userID, participantID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to retrieve messages")
		return
	}

	senders := map[string]models.UserRef{
		userID:        userRef(h.DB, userID),
		participantID: userRef(h.DB, participantID),
	}
	for _, message := range messages {
		if ref, ok := senders[message.SenderID.ID]; ok {
			message.SenderID = ref
		}
	}
	respond(c, http.StatusOK, messages)
}
