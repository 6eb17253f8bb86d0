// Package session tracks conversation history explicitly, scoped to a
// single session. History is never hidden process-wide state; callers
// create a Session and pass it where it is needed.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	// RoleUser marks turns authored by the user
	RoleUser Role = "user"

	// RoleAssistant marks turns authored by the assistant
	RoleAssistant Role = "assistant"
)

// DefaultMaxTurns bounds how many turns a session retains.
const DefaultMaxTurns = 20

// Turn is a single exchange entry in a session.
type Turn struct {
	Role    Role
	Content string
}

// Session holds the explicit, bounded conversation history for one
// conversation. Safe for concurrent use.
type Session struct {
	id       string
	maxTurns int

	mutex sync.RWMutex
	turns []Turn
}

// New creates an empty session with the default turn bound.
func New() *Session {
	return NewWithLimit(DefaultMaxTurns)
}

// NewWithLimit creates an empty session retaining at most maxTurns turns.
func NewWithLimit(maxTurns int) *Session {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Session{
		id:       uuid.New().String(),
		maxTurns: maxTurns,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// AddTurn appends a turn, evicting the oldest when over the bound.
func (s *Session) AddTurn(role Role, content string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.turns = append(s.turns, Turn{Role: role, Content: content})
	if len(s.turns) > s.maxTurns {
		s.turns = s.turns[len(s.turns)-s.maxTurns:]
	}
}

// Turns returns a copy of the retained turns, oldest first.
func (s *Session) Turns() []Turn {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// History renders the retained turns as prompt-ready text, one
// "role: content" line per turn. An empty session renders as the
// empty string.
func (s *Session) History() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.turns) == 0 {
		return ""
	}

	var b strings.Builder
	for i, turn := range s.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return b.String()
}
