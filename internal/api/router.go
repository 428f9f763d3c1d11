package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ammar1510/gigchat/internal/database"
	"github.com/ammar1510/gigchat/internal/websocket"
)

// NewRouter wires every REST route under /api/v1 plus the /socket endpoint.
func NewRouter(db database.Store, sockets *websocket.Manager, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	// Path parameters may carry escaped slashes.
	router.UseRawPath = true
	router.UnescapePathValues = true

	router.Use(cors.New(corsConfig(allowedOrigins)))

	authHandler := NewAuthHandler(db)
	projectHandler := NewProjectHandler(db)
	chatHandler := NewChatHandler(db)
	uploadHandler := NewUploadHandler(db)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)

	authorized := v1.Group("")
	authorized.Use(AuthMiddleware())
	{
		authorized.GET("/auth/me", authHandler.GetMe)

		authorized.POST("/projects", projectHandler.CreateProject)
		authorized.GET("/projects/:id", projectHandler.GetProject)
		authorized.GET("/bids/project/:id", projectHandler.GetProjectBids)
		authorized.POST("/bids", projectHandler.CreateBid)
		authorized.PUT("/bids/:id/accept", projectHandler.AcceptBid)

		authorized.GET("/chat/conversations", chatHandler.GetConversations)
		authorized.GET("/chat/history/:participantId", chatHandler.GetHistory)

		authorized.POST("/uploads", uploadHandler.Upload)
	}

	router.GET("/socket", TokenAuthMiddleware(), sockets.HandleWebSocket)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	wildcard := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
		}
	}
	if wildcard {
		config.AllowAllOrigins = true
		return config
	}

	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	return config
}
