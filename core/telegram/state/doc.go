// Package state holds typed per-user values in memory with an idle TTL.
// The feedback conversation store is built on it.
package state
