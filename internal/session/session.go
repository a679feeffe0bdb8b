// Package session keeps in-memory conversation state between chat
// requests. Sessions live for the idle TTL and are swept by a janitor
// goroutine; nothing is persisted.
package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"mkb/internal/cache"
	"mkb/internal/errors"
	"mkb/internal/logging"
)

// Role tags who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is a snapshot of one conversation. Messages is a copy; the
// store's state cannot be mutated through it.
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	Messages   []Message `json:"messages"`
}

type sessionState struct {
	id         string
	createdAt  time.Time
	lastActive time.Time
	messages   []Message
}

// Config tunes the store.
type Config struct {
	// TTL is how long an idle session survives. Zero means 30 minutes.
	TTL time.Duration
	// MaxMessages caps the history per session; the oldest turns are
	// dropped past it. Zero means 40.
	MaxMessages int
	// SweepInterval is how often the janitor runs. Zero means 5
	// minutes.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 40
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// Store holds the live sessions. Expiry is checked on every read, so a
// session past its TTL is gone to callers even before the janitor
// removes it.
type Store struct {
	cfg    Config
	clock  cache.Clock
	logger *logging.Logger

	mu       sync.Mutex
	entropy  *rand.Rand
	sessions map[string]*sessionState

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStore creates an empty session store. A nil clock means the wall
// clock.
func NewStore(cfg Config, clock cache.Clock, logger *logging.Logger) *Store {
	if clock == nil {
		clock = cache.RealClock()
	}
	return &Store{
		cfg:      cfg.withDefaults(),
		clock:    clock,
		logger:   logger,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions: make(map[string]*sessionState),
		stopCh:   make(chan struct{}),
	}
}

// Create starts a new session and returns its snapshot.
func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	state := &sessionState{
		id:         ulid.MustNew(ulid.Timestamp(now), s.entropy).String(),
		createdAt:  now,
		lastActive: now,
	}
	s.sessions[state.id] = state

	s.logger.Debug("session created", map[string]interface{}{
		"session": state.id,
	})
	return snapshot(state)
}

// Get returns a session snapshot, or SESSION_NOT_FOUND for unknown or
// expired ids.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.live(id)
	if err != nil {
		return Session{}, err
	}
	return snapshot(state), nil
}

// Append adds one message to a session, refreshes its idle clock, and
// returns the updated snapshot. Histories past MaxMessages drop their
// oldest turns.
func (s *Store) Append(id string, role Role, content string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.live(id)
	if err != nil {
		return Session{}, err
	}

	now := s.clock.Now()
	state.messages = append(state.messages, Message{Role: role, Content: content, At: now})
	if overflow := len(state.messages) - s.cfg.MaxMessages; overflow > 0 {
		state.messages = state.messages[overflow:]
	}
	state.lastActive = now
	return snapshot(state), nil
}

// History returns a copy of a session's messages.
func (s *Store) History(id string) ([]Message, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

// Delete removes a session if it exists.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of stored sessions, expired ones included
// until the janitor sweeps them.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartJanitor launches the background sweep loop. Stop ends it.
func (s *Store) StartJanitor() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					s.logger.Debug("expired sessions swept", map[string]interface{}{
						"removed": removed,
					})
				}
			}
		}
	}()
}

// Stop ends the janitor and waits for it to exit.
func (s *Store) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Sweep removes every expired session and reports how many went.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for id, state := range s.sessions {
		if now.Sub(state.lastActive) >= s.cfg.TTL {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// live returns the state for id if it exists and is within the TTL.
// Callers hold s.mu.
func (s *Store) live(id string) (*sessionState, error) {
	state, ok := s.sessions[id]
	if !ok {
		return nil, errors.New(errors.SessionNotFound, fmt.Sprintf("session %s", id), nil)
	}
	if s.clock.Now().Sub(state.lastActive) >= s.cfg.TTL {
		delete(s.sessions, id)
		return nil, errors.New(errors.SessionNotFound, fmt.Sprintf("session %s expired", id), nil)
	}
	return state, nil
}

func snapshot(state *sessionState) Session {
	messages := make([]Message, len(state.messages))
	copy(messages, state.messages)
	return Session{
		ID:         state.id,
		CreatedAt:  state.createdAt,
		LastActive: state.lastActive,
		Messages:   messages,
	}
}
