package telemetry

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the lifecycle position of one telemetry session.
type State int32

const (
	StateHandshaking State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	default:
		return "closed"
	}
}

// Session tracks one connection. Transitions only move forward.
type Session struct {
	ID       string
	Username string
	state    atomic.Int32
}

func newSession() *Session {
	return &Session{ID: uuid.NewString()}
}

func (s *Session) State() State { return State(s.state.Load()) }

// advance moves to next if it is later than the current state and
// reports whether it did.
func (s *Session) advance(next State) bool {
	for {
		cur := s.state.Load()
		if State(cur) >= next {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}
