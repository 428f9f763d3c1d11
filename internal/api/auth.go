package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/ammar1510/gigchat/internal/auth"
	"github.com/ammar1510/gigchat/internal/database"
	"github.com/ammar1510/gigchat/internal/models"
)

// AuthHandler handles authentication routes
type AuthHandler struct {
	DB database.Store
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db database.Store) *AuthHandler {
	return &AuthHandler{DB: db}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.UserRegistration

	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if input.Role == "" {
		input.Role = "client"
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		fail(c, http.StatusBadRequest, "Password must be at most 72 bytes")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.DB.CreateUser(input.Name, input.Email, hashedPassword, input.Role)
	if errors.Is(err, database.ErrUserAlreadyExists) {
		fail(c, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		log.Error("Failed to create user %s: %v", input.Email, err)
		fail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, _, err := auth.GenerateToken(user)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respond(c, http.StatusCreated, models.AuthResponse{Token: token, User: *user})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.UserLogin

	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.DB.GetUserByEmail(input.Email)
	if errors.Is(err, database.ErrUserNotFound) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	if !auth.CheckPasswordHash(input.Password, user.PasswordHash) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.DB.UpdateLastSeen(user.ID); err != nil {
		log.Warn("Failed to update last_seen for %s: %v", user.ID, err)
	}

	token, _, err := auth.GenerateToken(user)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respond(c, http.StatusOK, models.AuthResponse{Token: token, User: *user})
}

// GetMe gets the current user profile
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, err := h.DB.GetUserByID(c.GetString("userID"))
	if errors.Is(err, database.ErrUserNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	respond(c, http.StatusOK, user)
}
