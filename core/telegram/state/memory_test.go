package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestMemoryDefaultForUnknownUser(t *testing.T) {
	m := NewMemory(Options[string]{Default: func() string { return "idle" }})

	v, ok := m.Get(1)
	require.False(t, ok)
	require.Equal(t, "idle", v)
}

func TestMemorySetGetClear(t *testing.T) {
	m := NewMemory(Options[string]{})

	m.Set(7, "waiting")
	v, ok := m.Get(7)
	require.True(t, ok)
	require.Equal(t, "waiting", v)

	m.Clear(7)
	_, ok = m.Get(7)
	require.False(t, ok)
	require.Equal(t, 0, m.Len())
}

func TestMemoryIdleTTL(t *testing.T) {
	c := &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemory(Options[int]{IdleTTL: time.Minute, Now: c.Now})

	m.Set(1, 10)
	m.Set(2, 20)

	c.now = c.now.Add(30 * time.Second)
	m.Set(2, 21)

	c.now = c.now.Add(45 * time.Second)
	_, ok := m.Get(1)
	require.False(t, ok, "user 1 should have expired")

	v, ok := m.Get(2)
	require.True(t, ok)
	require.Equal(t, 21, v)

	c.now = c.now.Add(time.Hour)
	require.Equal(t, 1, m.Sweep())
	require.Equal(t, 0, m.Len())
}
