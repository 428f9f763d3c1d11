package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/gigchat/internal/database"
)

// MaxUploadSize bounds accepted attachments.
const MaxUploadSize = 10 << 20

// UploadHandler accepts attachments. Only the metadata is kept.
type UploadHandler struct {
	DB database.Store
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(db database.Store) *UploadHandler {
	return &UploadHandler{DB: db}
}

// Upload stores the "file" part of a multipart request
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "File is required")
		return
	}
	if header.Size > MaxUploadSize {
		fail(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	attachment, err := h.DB.CreateAttachment(c.GetString("userID"), header.Filename, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		log.Error("Failed to store attachment %s: %v", header.Filename, err)
		fail(c, http.StatusInternalServerError, "Failed to store file")
		return
	}

	respond(c, http.StatusCreated, attachment)
}
