package database

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammar1510/gigchat/internal/models"
)

// MemoryStore keeps everything in process. It is the default for local runs
// and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*models.User
	emails      map[string]string
	projects    map[string]*models.Project
	bids        []*models.Bid
	messages    []*models.Message
	attachments map[string]*models.Attachment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*models.User),
		emails:      make(map[string]string),
		projects:    make(map[string]*models.Project),
		attachments: make(map[string]*models.Attachment),
	}
}

func (s *MemoryStore) CreateUser(name, email, passwordHash, role string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := s.emails[key]; exists {
		return nil, ErrUserAlreadyExists
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        key,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		LastSeen:     now,
	}
	s.users[user.ID] = user
	s.emails[key] = user.ID

	copied := *user
	return &copied, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

func (s *MemoryStore) GetUserByID(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) UpdateLastSeen(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.LastSeen = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CreateProject(ownerID string, input models.ProjectInput) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[ownerID]; !ok {
		return nil, ErrUserNotFound
	}
	project := &models.Project{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Owner:       models.Ref(ownerID),
		Budget:      input.Budget,
		Status:      models.ProjectOpen,
		CreatedAt:   time.Now().UTC(),
	}
	s.projects[project.ID] = project

	copied := *project
	return &copied, nil
}

func (s *MemoryStore) GetProject(id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	copied := *project
	return &copied, nil
}

func (s *MemoryStore) CreateBid(freelancerID string, input models.BidInput) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[freelancerID]; !ok {
		return nil, ErrUserNotFound
	}
	if _, ok := s.projects[input.ProjectID]; !ok {
		return nil, ErrProjectNotFound
	}
	bid := &models.Bid{
		ID:         uuid.NewString(),
		ProjectID:  input.ProjectID,
		Freelancer: models.Ref(freelancerID),
		Amount:     input.Amount,
		Proposal:   input.Proposal,
		Status:     models.BidPending,
		CreatedAt:  time.Now().UTC(),
	}
	s.bids = append(s.bids, bid)

	copied := *bid
	return &copied, nil
}

func (s *MemoryStore) GetBidsByProject(projectID string) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrProjectNotFound
	}
	bids := []*models.Bid{}
	for _, bid := range s.bids {
		if bid.ProjectID == projectID {
			copied := *bid
			bids = append(bids, &copied)
		}
	}
	return bids, nil
}

func (s *MemoryStore) AcceptBid(bidID, ownerID string) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accepted *models.Bid
	for _, bid := range s.bids {
		if bid.ID == bidID {
			accepted = bid
			break
		}
	}
	if accepted == nil {
		return nil, ErrBidNotFound
	}
	project := s.projects[accepted.ProjectID]
	if project.Owner.ID != ownerID {
		return nil, ErrNotProjectOwner
	}
	if accepted.Status != models.BidPending {
		return nil, ErrBidClosed
	}

	for _, bid := range s.bids {
		if bid.ProjectID != accepted.ProjectID {
			continue
		}
		if bid == accepted {
			bid.Status = models.BidAccepted
		} else if bid.Status == models.BidPending {
			bid.Status = models.BidRejected
		}
	}
	project.Status = models.ProjectInProgress

	copied := *accepted
	return &copied, nil
}

func (s *MemoryStore) CreateMessage(senderID, receiverID, projectID, body string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[senderID]; !ok {
		return nil, ErrUserNotFound
	}
	if _, ok := s.users[receiverID]; !ok {
		return nil, ErrUserNotFound
	}
	message := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   models.Ref(senderID),
		ReceiverID: models.Ref(receiverID),
		Body:       body,
		ProjectID:  projectID,
		CreatedAt:  time.Now().UTC(),
	}
	s.messages = append(s.messages, message)

	copied := *message
	return &copied, nil
}

func (s *MemoryStore) GetConversation(userID1, userID2 string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := []*models.Message{}
	for _, message := range s.messages {
		from, to := message.SenderID.ID, message.ReceiverID.ID
		if (from == userID1 && to == userID2) || (from == userID2 && to == userID1) {
			copied := *message
			messages = append(messages, &copied)
		}
	}
	return messages, nil
}

func (s *MemoryStore) GetConversationPartners(userID string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]int)
	for i, message := range s.messages {
		switch userID {
		case message.SenderID.ID:
			latest[message.ReceiverID.ID] = i
		case message.ReceiverID.ID:
			latest[message.SenderID.ID] = i
		}
	}
	delete(latest, userID)

	partners := make([]string, 0, len(latest))
	for id := range latest {
		partners = append(partners, id)
	}
	sort.Slice(partners, func(i, j int) bool { return latest[partners[i]] > latest[partners[j]] })

	users := make([]*models.User, 0, len(partners))
	for _, id := range partners {
		if user, ok := s.users[id]; ok {
			copied := *user
			users = append(users, &copied)
		}
	}
	return users, nil
}

func (s *MemoryStore) CreateAttachment(uploadedBy, name, contentType string, size int64) (*models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attachment := &models.Attachment{
		ID:          uuid.NewString(),
		Name:        name,
		Size:        size,
		ContentType: contentType,
		UploadedBy:  uploadedBy,
		CreatedAt:   time.Now().UTC(),
	}
	s.attachments[attachment.ID] = attachment

	copied := *attachment
	return &copied, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
