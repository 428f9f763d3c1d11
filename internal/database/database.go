package database

import (
	"errors"
	"fmt"

	"github.com/ammar1510/gigchat/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrProjectNotFound   = errors.New("project not found")
	ErrBidNotFound       = errors.New("bid not found")
	ErrNotProjectOwner   = errors.New("only the project owner can do that")
	ErrBidClosed         = errors.New("bid is no longer pending")
)

// Store is the persistence used by the development backend
type Store interface {
	// User methods
	CreateUser(name, email, passwordHash, role string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateLastSeen(userID string) error

	// Project and bid methods
	CreateProject(ownerID string, input models.ProjectInput) (*models.Project, error)
	GetProject(id string) (*models.Project, error)
	CreateBid(freelancerID string, input models.BidInput) (*models.Bid, error)
	GetBidsByProject(projectID string) ([]*models.Bid, error)
	AcceptBid(bidID, ownerID string) (*models.Bid, error)

	// Message methods
	CreateMessage(senderID, receiverID, projectID, body string) (*models.Message, error)
	GetConversation(userID1, userID2 string) ([]*models.Message, error)
	GetConversationPartners(userID string) ([]*models.User, error)

	// Upload methods
	CreateAttachment(uploadedBy, name, contentType string, size int64) (*models.Attachment, error)

	Close() error
}

type DatabaseType string

const (
	Memory     DatabaseType = "memory"
	PostgreSQL DatabaseType = "postgres"
)

func NewDatabase(dbType DatabaseType, connStr string) (Store, error) {
	switch dbType {
	case Memory:
		return NewMemoryStore(), nil
	case PostgreSQL:
		return NewPostgresStore(connStr)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
