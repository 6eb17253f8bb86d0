package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AddTurnAndHistory(t *testing.T) {
	s := New()
	assert.Equal(t, "", s.History())

	s.AddTurn(RoleUser, "how do I provision a VPC")
	s.AddTurn(RoleAssistant, "use terraform with the vpc module")

	assert.Equal(t,
		"user: how do I provision a VPC\nassistant: use terraform with the vpc module",
		s.History())
}

func TestSession_TurnsReturnsCopy(t *testing.T) {
	s := New()
	s.AddTurn(RoleUser, "original")

	turns := s.Turns()
	require.Len(t, turns, 1)
	turns[0].Content = "mutated"

	assert.Equal(t, "original", s.Turns()[0].Content)
}

func TestSession_EvictsOldestBeyondLimit(t *testing.T) {
	s := NewWithLimit(4)

	for i := 0; i < 6; i++ {
		s.AddTurn(RoleUser, fmt.Sprintf("turn %d", i))
	}

	turns := s.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, "turn 2", turns[0].Content)
	assert.Equal(t, "turn 5", turns[3].Content)
}

func TestSession_UniqueIDs(t *testing.T) {
	assert.NotEqual(t, New().ID(), New().ID())
}

func TestSession_ConcurrentAddTurn(t *testing.T) {
	s := NewWithLimit(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.AddTurn(RoleUser, fmt.Sprintf("goroutine %d turn %d", n, j))
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Turns(), 500)
}
