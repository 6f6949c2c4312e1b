package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// GeneratedIDLength is the length of generated session IDs
const GeneratedIDLength = 8

// Session is a controller running in the background
type Session struct {
	ID         string      `json:"id"`
	Levels     []string    `json:"levels,omitempty"`
	Controller *Controller `json:"-"`
	Input      *QueueInput `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`

	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.RWMutex
	lastAccessed time.Time
	result       Result
	err          error
}

// LastAccessed returns when the session was last used
func (s *Session) LastAccessed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccessed
}

// SetLastAccessed records when the session was last used
func (s *Session) SetLastAccessed(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = t
}

// Done is closed once the controller has returned
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Finished reports whether the controller has returned
func (s *Session) Finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Outcome returns the controller result once finished
func (s *Session) Outcome() (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.err
}

// Send queues a key press for the session
func (s *Session) Send(r rune) bool {
	return s.Input.Push(r)
}

// Manager handles live session lifecycle
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	log      *log.Entry
}

// NewManager creates a new session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		log:      log.WithField("component", "sessions"),
	}
}

// Create starts a new session. An empty id generates one.
func (m *Manager) Create(id string, loader LevelLoader, renderer Renderer, opts Options) (*Session, error) {
	if id == "" {
		id = m.generateSessionID()
	}
	if !validID.MatchString(id) {
		return nil, ErrInvalidSessionID
	}

	levels, err := loader.Levels()
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check if session already exists (case-insensitive)
	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	opts.ID = id
	if opts.Logger == nil {
		opts.Logger = m.log
	}
	input := NewQueueInput(DefaultInputBuffer)
	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	session := &Session{
		ID:           id,
		Levels:       levels,
		Controller:   NewController(loader, renderer, input, opts),
		Input:        input,
		CreatedAt:    now,
		lastAccessed: now,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	m.sessions[strings.ToLower(id)] = session

	go func() {
		defer close(session.done)
		res, err := session.Controller.Run(ctx)
		session.mu.Lock()
		session.result, session.err = res, err
		session.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			m.log.WithError(err).WithField("session", id).Warn("session stopped with error")
		}
	}()

	m.log.WithField("session", id).Info("session created")
	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// List returns all sessions
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// Delete stops a session and removes it
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[strings.ToLower(id)]
	if exists {
		delete(m.sessions, strings.ToLower(id))
	}
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	session.cancel()
	<-session.done
	m.log.WithField("session", session.ID).Info("session deleted")
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}
	session.SetLastAccessed(time.Now())
	return nil
}

// CleanupExpiredSessions stops and removes sessions not accessed within
// maxAge
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var expired []*Session
	for key, session := range m.sessions {
		if session.LastAccessed().Before(cutoff) {
			expired = append(expired, session)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		session.cancel()
		<-session.done
	}
	return len(expired)
}

// Shutdown stops every session
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.cancel()
		<-session.done
	}
}

// sessionExists checks if a session exists (must be called with lock held)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

// generateSessionID generates a unique session ID
func (m *Manager) generateSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:GeneratedIDLength]
		if !m.sessionExists(id) {
			return id
		}
	}
}
