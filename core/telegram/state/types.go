package state

import "time"

// Entry is a stored session value with its last touch time.
type Entry[T any] struct {
	Value     T
	UpdatedAt time.Time
}

// Options configures a Memory store.
type Options[T any] struct {
	// IdleTTL evicts sessions untouched for longer than this; 0 keeps them forever.
	IdleTTL time.Duration
	// Default is returned for users without a live session.
	Default func() T
	// Now is overridable for tests.
	Now func() time.Time
}
