package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ammar1510/gigchat/internal/database"
	"github.com/ammar1510/gigchat/internal/logger"
	"github.com/ammar1510/gigchat/internal/models"
)

var log = logger.New("api")

// respond writes the {success, data} envelope clients unwrap.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// fail writes an error envelope and stops the handler chain.
func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// userRef embeds the user's public fields when the user can be loaded and
// falls back to the bare id otherwise.
func userRef(db database.Store, id string) models.UserRef {
	user, err := db.GetUserByID(id)
	if err != nil {
		return models.Ref(id)
	}
	summary := user.Summary()
	return models.UserRef{ID: id, User: &summary}
}
