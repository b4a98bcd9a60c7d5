// Package store provides user-state storage backends for the dispatcher.
//
// It includes an in-memory store plus SQLite and PostgreSQL backends so bot
// conversations can survive process restarts.
package store

import "sync"

// StateStore persists the per-sender conversation state. GetUserState
// returns the empty string for senders that have no tracked state yet.
type StateStore interface {
	GetUserState(sender string) (string, error)
	SetUserState(sender, state string) error
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// connection URL for PostgreSQL.
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// InMemoryStore keeps user states in a process-local map. States are
// retained for the process lifetime and lost on restart.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]string
}

// NewInMemoryStore creates an empty in-memory state store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]string)}
}

// GetUserState returns the tracked state for a sender, or "" when unknown.
func (s *InMemoryStore) GetUserState(sender string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[sender], nil
}

// SetUserState overwrites the tracked state for a sender.
func (s *InMemoryStore) SetUserState(sender, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sender] = state
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
