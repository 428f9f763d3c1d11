package models

import "time"

// User represents a marketplace account held by the development backend
type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never send to client
	Role         string    `json:"role,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Summary is the embedded form attached to messages, projects and bids
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Role:   u.Role,
	}
}

// UserRegistration contains data needed for user registration
type UserRegistration struct {
	Name     string `json:"name" binding:"required,min=2,max=60"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=5,max=72"`
	Role     string `json:"role" binding:"omitempty,oneof=client freelancer admin"`
}

// UserLogin contains data needed for user login
type UserLogin struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
