package marketplace

import "sync"

// Session holds the signed-in user's token and id. It satisfies both
// TokenSource and the conversation manager's Session.
type Session struct {
	mu     sync.RWMutex
	token  string
	userID string
}

// NewSession returns a session for an already issued token.
func NewSession(token, userID string) *Session {
	return &Session{token: token, userID: userID}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Set replaces the credentials, e.g. after a fresh login.
func (s *Session) Set(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = userID
}
