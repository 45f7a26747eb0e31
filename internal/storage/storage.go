package storage

import (
	"context"
	"time"

	"github.com/calebreed/parley/internal/chat"
)

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"
	StatusArchived SessionStatus = "archived"
)

// Session is the metadata for a saved conversation.
type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Status    SessionStatus `json:"status"`
	Model     string        `json:"model"`
	Profile   string        `json:"profile"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SessionListOptions controls filtering and pagination for ListSessions.
type SessionListOptions struct {
	Status SessionStatus
	Limit  int
	Offset int
}

// Store is the persistence interface for sessions and their turns.
// Function registrations are never persisted; they are re-derived from
// profile and config when a session is resumed.
type Store interface {
	// CreateSession inserts a new session. The ID field must be set by the caller.
	CreateSession(ctx context.Context, s *Session) error

	// GetSession returns a session by ID or unambiguous ID prefix.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns sessions ordered by updated_at descending.
	ListSessions(ctx context.Context, opts SessionListOptions) ([]Session, error)

	// UpdateSession updates mutable fields (title, status, updated_at).
	UpdateSession(ctx context.Context, s *Session) error

	// DeleteSession removes a session and its turns.
	DeleteSession(ctx context.Context, id string) error

	// SaveTurns overwrites the full turn history for a session.
	SaveTurns(ctx context.Context, sessionID string, turns []chat.Turn) error

	// LoadTurns returns the turn history for a session.
	LoadTurns(ctx context.Context, sessionID string) ([]chat.Turn, error)

	// Close releases resources.
	Close() error
}
