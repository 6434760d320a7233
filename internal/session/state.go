package session

import (
	"time"

	"github.com/google/uuid"

	"chatstream/internal/llm"
)

// State is a session lifecycle state.
type State string

const (
	StateCreated    State = "created"
	StateValidating State = "validating"
	StateGenerating State = "generating"
	StateDraining   State = "draining"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

var transitions = map[State][]State{
	StateCreated:    {StateValidating},
	StateValidating: {StateGenerating, StateFailed},
	StateGenerating: {StateDraining, StateFailed},
	StateDraining:   {StateCompleted, StateFailed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is the per-request record. It is owned by the goroutine serving
// the request and is never shared.
type Session struct {
	ID        string
	Prompt    string
	Params    llm.Params
	State     State
	Started   time.Time
	Fragments int
}

func newSession(params llm.Params) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Params:  params,
		State:   StateCreated,
		Started: time.Now(),
	}
}

// transition moves s to next and reports whether the move was legal.
// Illegal moves leave the state unchanged.
func (s *Session) transition(next State) bool {
	if !CanTransition(s.State, next) {
		return false
	}
	s.State = next
	return true
}

// Outcome summarizes a finished session.
type Outcome struct {
	SessionID string
	State     State
	Fragments int
	Duration  time.Duration
	// Err is the failure that ended the session, nil when completed.
	Err error
}
