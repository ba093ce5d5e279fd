package state

import (
	"sync"
	"time"
)

// Memory is an in-process session map keyed by Telegram user id.
type Memory[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]Entry[T]
	opts     Options[T]
}

// NewMemory constructs an in-memory store. Sessions are lost on restart.
func NewMemory[T any](opts Options[T]) *Memory[T] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Memory[T]{
		sessions: make(map[int64]Entry[T]),
		opts:     opts,
	}
}

// Get returns the session for a user, or the default value when none is live.
func (m *Memory[T]) Get(userID int64) (T, bool) {
	m.mu.RLock()
	entry, ok := m.sessions[userID]
	m.mu.RUnlock()

	if ok && m.expired(entry) {
		m.mu.Lock()
		// re-check under write lock; a concurrent Set may have refreshed it
		if cur, still := m.sessions[userID]; still && m.expired(cur) {
			delete(m.sessions, userID)
		}
		m.mu.Unlock()
		ok = false
	}
	if ok {
		return entry.Value, true
	}
	return m.defaultValue(), false
}

// Set stores the session value for a user.
func (m *Memory[T]) Set(userID int64, value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = Entry[T]{Value: value, UpdatedAt: m.opts.Now()}
}

// Clear removes the session for a user.
func (m *Memory[T]) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len reports the number of stored sessions, including expired ones not yet swept.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops every expired session and returns how many were removed.
func (m *Memory[T]) Sweep() int {
	if m.opts.IdleTTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, entry := range m.sessions {
		if m.expired(entry) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *Memory[T]) expired(e Entry[T]) bool {
	return m.opts.IdleTTL > 0 && m.opts.Now().Sub(e.UpdatedAt) > m.opts.IdleTTL
}

func (m *Memory[T]) defaultValue() T {
	if m.opts.Default != nil {
		return m.opts.Default()
	}
	var zero T
	return zero
}
