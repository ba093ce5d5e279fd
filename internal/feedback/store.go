package feedback

import (
	"context"
	"time"

	"github.com/m3rciful/feedbot/core/telegram/state"
)

// Store maps a user id to its conversation state. Load returns Menu{} for
// unknown users.
type Store interface {
	Load(ctx context.Context, userID int64) (State, error)
	Save(ctx context.Context, userID int64, st State) error
}

// MemoryStore keeps conversation state in process memory.
type MemoryStore struct {
	sessions *state.Memory[State]
}

// NewMemoryStore builds a memory store; idleTTL <= 0 disables eviction.
func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: state.NewMemory(state.Options[State]{
			IdleTTL: idleTTL,
			Default: func() State { return Menu{} },
		}),
	}
}

// Load returns the stored state or Menu{}.
func (s *MemoryStore) Load(_ context.Context, userID int64) (State, error) {
	st, _ := s.sessions.Get(userID)
	if st == nil {
		return Menu{}, nil
	}
	return st, nil
}

// Save replaces the user's state.
func (s *MemoryStore) Save(_ context.Context, userID int64, st State) error {
	if st == nil {
		st = Menu{}
	}
	s.sessions.Set(userID, st)
	return nil
}

// Sweep drops idle conversations.
func (s *MemoryStore) Sweep() int {
	return s.sessions.Sweep()
}
