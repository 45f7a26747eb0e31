package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/calebreed/parley/internal/chat"
	"github.com/calebreed/parley/internal/config"
	"github.com/calebreed/parley/internal/profile"
	"github.com/calebreed/parley/internal/resilience"
	"github.com/calebreed/parley/internal/storage"
	"github.com/calebreed/parley/internal/tools"
)

// ActiveSession tracks an in-memory conversation for a stored session.
type ActiveSession struct {
	Session   *Session
	MaxRounds int
	Cancel    context.CancelFunc // cancels the in-flight exchange
	mu        sync.Mutex         // one exchange at a time per session
}

// TryAcquire claims the session for one exchange. It fails immediately
// instead of queueing when an exchange is already running.
func (as *ActiveSession) TryAcquire() bool {
	return as.mu.TryLock()
}

// Release ends the exchange claimed by TryAcquire.
func (as *ActiveSession) Release() {
	as.mu.Unlock()
}

// Manager tracks which stored sessions have a live conversation in memory.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*ActiveSession
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*ActiveSession),
	}
}

// Get returns an active session if it exists.
func (m *Manager) Get(sessionID string) (*ActiveSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	as, ok := m.sessions[sessionID]
	return as, ok
}

// GetOrCreate returns an existing active session or builds one: client and
// transport from config, function registrations from profile and tool
// registry, history restored from the store. Function registrations are
// never read from storage.
func (m *Manager) GetOrCreate(
	ctx context.Context,
	sess *storage.Session,
	cfg *config.Config,
	store storage.Store,
	registry *tools.Registry,
) (*ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if as, ok := m.sessions[sess.ID]; ok {
		return as, nil
	}

	id, err := uuid.Parse(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sess.ID, err)
	}

	// Resolve model: the session's own, else the profile's, else the default
	model := sess.Model
	var prof *profile.Profile
	if sess.Profile != "" {
		prof, err = profile.LoadNamed(cfg.Profiles.Dir, sess.Profile)
		if err != nil {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
		if model == "" {
			model = prof.Model
		}
	}
	if model == "" {
		model = cfg.Chat.Model
	}

	maxRounds := cfg.Chat.MaxRounds
	if prof != nil && prof.MaxRounds > 0 {
		maxRounds = prof.MaxRounds
	}

	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}

	conv := chat.NewContext(model)

	if prof != nil {
		fns, err := prof.LoadFunctions()
		if err != nil {
			return nil, err
		}
		for _, fn := range fns {
			if err := conv.RegisterFunction(fn); err != nil {
				return nil, fmt.Errorf("registering profile function: %w", err)
			}
		}
	}
	if registry != nil {
		for _, fn := range registry.Functions() {
			err := conv.RegisterFunction(fn)
			if err != nil {
				// The profile's spec wins over the tool server's copy.
				var dup *chat.DuplicateFunctionError
				if errors.As(err, &dup) {
					continue
				}
				return nil, fmt.Errorf("registering tool function: %w", err)
			}
		}
	}

	// Restore history, else open with the profile's system prompt
	turns, err := store.LoadTurns(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}
	if len(turns) > 0 {
		conv.SetTurns(turns)
	} else if prof != nil && prof.SystemPrompt != "" {
		conv.AppendSystem(prof.SystemPrompt)
	}

	as := &ActiveSession{
		Session:   Restore(id, client, conv),
		MaxRounds: maxRounds,
	}
	m.sessions[sess.ID] = as
	return as, nil
}

// buildClient assembles the completion client from config, wrapping the
// HTTP transport in the retry decorator when retries are configured.
func buildClient(cfg *config.Config) (*chat.Client, error) {
	httpTransport, err := chat.NewHTTPTransport(cfg.ClientConfig())
	if err != nil {
		return nil, err
	}
	var transport chat.Transport = httpTransport
	if policy := cfg.RetryPolicy(); policy.MaxAttempts > 1 {
		transport = resilience.NewTransport(transport, policy)
	}
	return chat.NewClientWithTransport(transport), nil
}

// Remove removes an active session and cancels any in-flight work.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if as, ok := m.sessions[sessionID]; ok {
		if as.Cancel != nil {
			as.Cancel()
		}
		delete(m.sessions, sessionID)
	}
}

// CloseAll cancels all active sessions.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, as := range m.sessions {
		if as.Cancel != nil {
			as.Cancel()
		}
		delete(m.sessions, id)
	}
}
