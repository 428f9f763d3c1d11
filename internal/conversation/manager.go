// Package conversation keeps the participant list and the open message
// thread for one project in sync with the REST history endpoints and the
// realtime socket.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ammar1510/gigchat/internal/logger"
	"github.com/ammar1510/gigchat/internal/models"
	"github.com/ammar1510/gigchat/internal/socket"
)

var log = logger.New("conversation")

var (
	// ErrNoProject is returned by NewManager without a project id.
	ErrNoProject = errors.New("conversation: project id is required")
	// ErrNoSession is returned by Start when the session has no user.
	ErrNoSession = errors.New("conversation: no authenticated session")
	// ErrStarted is returned by Start on an already mounted manager.
	ErrStarted = errors.New("conversation: already started")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("conversation: closed")
)

// Session exposes the signed-in user.
type Session interface {
	UserID() string
	Token() string
}

// API is the set of REST lookups the manager depends on.
type API interface {
	Project(ctx context.Context, projectID string) (models.Project, error)
	ProjectBids(ctx context.Context, projectID string) ([]models.Bid, error)
	Conversations(ctx context.Context) ([]models.UserSummary, error)
	History(ctx context.Context, participantID string) ([]models.Message, error)
}

// Socket is the realtime message channel.
type Socket interface {
	Events() <-chan socket.Event
	Emit(name string, payload any) error
	State() socket.State
	Close() error
}

// Options configures NewManager.
type Options struct {
	ProjectID string
	Session   Session
	API       API
	Socket    Socket
	// Notifier receives user-facing toasts. Defaults to logging them.
	Notifier Notifier
}

// Snapshot is a consistent copy of the manager's view state.
type Snapshot struct {
	State        State
	Participants []models.Participant
	Active       string
	Messages     []models.Message
	Connected    bool
	Draft        string
}

// Manager owns the conversation view for one project. All methods are safe
// for concurrent use.
type Manager struct {
	projectID string
	session   Session
	api       API
	socket    Socket
	notifier  Notifier

	mu           sync.Mutex
	state        State
	participants []models.Participant
	active       string
	messages     []models.Message
	// pending holds socket appends that landed while the active thread's
	// history was loading; they are kept when the history arrives.
	pending    []models.Message
	connected  bool
	draft      string
	generation uint64
	started    bool
	closed     bool

	changes  chan struct{}
	stop     chan struct{}
	loopDone chan struct{}

	closeOnce sync.Once
}

// NewManager validates opts and returns an unmounted manager.
func NewManager(opts Options) (*Manager, error) {
	switch {
	case opts.ProjectID == "":
		return nil, ErrNoProject
	case opts.Session == nil:
		return nil, errors.New("conversation: session is required")
	case opts.API == nil:
		return nil, errors.New("conversation: api is required")
	case opts.Socket == nil:
		return nil, errors.New("conversation: socket is required")
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = logNotifier{}
	}

	return &Manager{
		projectID: opts.ProjectID,
		session:   opts.Session,
		api:       opts.API,
		socket:    opts.Socket,
		notifier:  notifier,
		state:     StateUninitialized,
		changes:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}, nil
}

// Start mounts the manager: it subscribes to socket events, resolves the
// participant list and opens the first participant's thread when nothing is
// selected yet. Lookup failures are reported through the Notifier and leave
// the participant list empty.
func (m *Manager) Start(ctx context.Context) error {
	if m.session.UserID() == "" {
		return ErrNoSession
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrStarted
	}
	m.started = true
	m.connected = m.socket.State() == socket.StateConnected
	m.mu.Unlock()

	go m.listen()

	return m.resolveParticipants(ctx)
}

func (m *Manager) resolveParticipants(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateResolvingParticipants
	m.changedLocked()
	m.mu.Unlock()

	var (
		wg            sync.WaitGroup
		project       models.Project
		bids          []models.Bid
		conversations []models.UserSummary
		projectErr    error
		bidsErr       error
		convErr       error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		project, projectErr = m.api.Project(ctx, m.projectID)
	}()
	go func() {
		defer wg.Done()
		bids, bidsErr = m.api.ProjectBids(ctx, m.projectID)
	}()
	go func() {
		defer wg.Done()
		conversations, convErr = m.api.Conversations(ctx)
	}()
	wg.Wait()

	if err := errors.Join(projectErr, bidsErr, convErr); err != nil {
		log.Error("Failed to resolve participants for project %s: %v", m.projectID, err)
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil
		}
		m.participants = nil
		m.state = m.settledStateLocked()
		m.changedLocked()
		m.mu.Unlock()
		m.notifier.Notify(Notification{Kind: NotifyError, Message: "Failed to load conversations"})
		return nil
	}

	participants := DeriveParticipants(m.session.UserID(), project, bids, conversations)
	log.Debug("Resolved %d participants for project %s", len(participants), m.projectID)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.participants = participants
	target := ""
	if m.active == "" && len(participants) > 0 {
		target = participants[0].ID
	}
	m.state = m.settledStateLocked()
	m.changedLocked()
	m.mu.Unlock()

	if target != "" {
		m.Select(ctx, target)
	}
	return nil
}

// Select makes participantID the active conversation and replaces the
// message log with its history. A result that arrives after another
// selection (or Close) is discarded.
func (m *Manager) Select(ctx context.Context, participantID string) {
	m.mu.Lock()
	if m.closed || participantID == "" {
		m.mu.Unlock()
		return
	}
	m.generation++
	generation := m.generation
	m.active = participantID
	m.messages = nil
	m.pending = nil
	m.state = StateLoadingHistory
	m.changedLocked()
	m.mu.Unlock()

	history, err := m.api.History(ctx, participantID)

	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		log.Debug("Discarding stale history for %s", participantID)
		return
	}
	if err != nil {
		m.messages = append([]models.Message(nil), m.pending...)
	} else {
		m.messages = mergeHistory(history, m.pending)
	}
	m.pending = nil
	m.state = StateThreadOpen
	m.changedLocked()
	m.mu.Unlock()

	if err != nil {
		log.Error("Failed to load history with %s: %v", participantID, err)
		m.notifier.Notify(Notification{Kind: NotifyError, Message: "Failed to load messages"})
	}
}

// mergeHistory returns history followed by the live messages it does not
// already contain.
func mergeHistory(history, live []models.Message) []models.Message {
	merged := make([]models.Message, 0, len(history)+len(live))
	merged = append(merged, history...)
	if len(live) == 0 {
		return merged
	}
	known := make(map[string]bool, len(history))
	for _, msg := range history {
		if msg.ID != "" {
			known[msg.ID] = true
		}
	}
	for _, msg := range live {
		if msg.ID != "" && known[msg.ID] {
			continue
		}
		merged = append(merged, msg)
	}
	return merged
}

// Send emits body to the active participant. It is a silent no-op, returning
// false, when the body is blank, nothing is selected or the socket is down.
// The message shows up in the log once the server echoes it back.
func (m *Manager) Send(body string) bool {
	text := strings.TrimSpace(body)

	m.mu.Lock()
	active, connected, closed := m.active, m.connected, m.closed
	m.mu.Unlock()

	if text == "" || active == "" || !connected || closed {
		return false
	}

	payload := models.SendMessagePayload{
		ReceiverID: active,
		Message:    text,
		ProjectID:  m.projectID,
	}
	if err := m.socket.Emit(socket.EventSendMessage, payload); err != nil {
		log.Warn("Failed to send message to %s: %v", active, err)
		return false
	}
	return true
}

// SetDraft replaces the input field contents.
func (m *Manager) SetDraft(text string) {
	m.mu.Lock()
	m.draft = text
	m.changedLocked()
	m.mu.Unlock()
}

// Draft returns the input field contents.
func (m *Manager) Draft() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// CanSend reports whether the send action is enabled for the current draft.
func (m *Manager) CanSend() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.connected && m.active != "" && strings.TrimSpace(m.draft) != ""
}

// SubmitDraft sends the draft and clears it when the send went out.
func (m *Manager) SubmitDraft() bool {
	if !m.Send(m.Draft()) {
		return false
	}
	m.mu.Lock()
	m.draft = ""
	m.changedLocked()
	m.mu.Unlock()
	return true
}

// Close unmounts the manager: the event loop stops, in-flight history
// results are dropped and the socket is closed. Safe to call more than once.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.generation++
		started := m.started
		m.participants = nil
		m.messages = nil
		m.pending = nil
		m.active = ""
		m.connected = false
		m.state = StateUninitialized
		m.mu.Unlock()

		close(m.stop)
		if started {
			<-m.loopDone
		}
		err = m.socket.Close()

		m.mu.Lock()
		close(m.changes)
		m.mu.Unlock()
	})
	return err
}

// Changes delivers a coalesced signal whenever the snapshot may have
// changed. It is closed by Close.
func (m *Manager) Changes() <-chan struct{} {
	return m.changes
}

// Snapshot returns a copy of the current view state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:        m.state,
		Participants: append([]models.Participant(nil), m.participants...),
		Active:       m.active,
		Messages:     append([]models.Message(nil), m.messages...),
		Connected:    m.connected,
		Draft:        m.draft,
	}
}

// Messages returns a copy of the active thread's log.
func (m *Manager) Messages() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.messages...)
}

// Participants returns a copy of the participant list.
func (m *Manager) Participants() []models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Participant(nil), m.participants...)
}

// Active returns the selected participant, if any. A participant selected
// by id but missing from the list is returned with only its id set.
func (m *Manager) Active() (models.Participant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == "" {
		return models.Participant{}, false
	}
	if p, ok := m.participantLocked(m.active); ok {
		return p, true
	}
	return models.Participant{ID: m.active}, true
}

// Connected reports the last known socket state.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// State returns the current view state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) participantLocked(id string) (models.Participant, bool) {
	for _, p := range m.participants {
		if p.ID == id {
			return p, true
		}
	}
	return models.Participant{}, false
}

func (m *Manager) settledStateLocked() State {
	switch {
	case m.active == "":
		return StateIdle
	case m.state == StateLoadingHistory:
		return StateLoadingHistory
	default:
		return StateThreadOpen
	}
}

func (m *Manager) changedLocked() {
	if m.closed {
		return
	}
	select {
	case m.changes <- struct{}{}:
	default:
	}
}
