package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/calebreed/parley/internal/chat"
)

// ErrFunctionCallRequested is returned by ManagedCompletion when the model
// chose to call a function instead of answering. The caller decides whether
// to execute it and continue.
var ErrFunctionCallRequested = errors.New("model requested a function call")

// FunctionCallError carries the requested call so the caller can act on it.
type FunctionCallError struct {
	Call *chat.FunctionCall
}

func (e *FunctionCallError) Error() string {
	return fmt.Sprintf("model requested function %q instead of answering", e.Call.Name)
}

func (e *FunctionCallError) Unwrap() error { return ErrFunctionCallRequested }

// Session ties a conversation to the client that drives it. The ID is a
// correlation handle for storage and the API; it carries no protocol meaning.
type Session struct {
	ID     uuid.UUID
	Conv   *chat.Context
	Client *chat.Client
}

// New creates a session with a fresh conversation for the given model.
func New(client *chat.Client, model string) *Session {
	return &Session{
		ID:     uuid.New(),
		Conv:   chat.NewContext(model),
		Client: client,
	}
}

// Restore wraps an existing conversation under a known ID, for sessions
// loaded from storage.
func Restore(id uuid.UUID, client *chat.Client, conv *chat.Context) *Session {
	return &Session{ID: id, Conv: conv, Client: client}
}

// Complete appends the user turn and runs one completion.
func (s *Session) Complete(ctx context.Context, userText string) (chat.Outcome, error) {
	s.Conv.AppendUser(userText)
	return s.Client.Complete(ctx, s.Conv)
}

// Continue runs a completion over the history as it stands, without adding
// a user turn. Used after a function result has been appended.
func (s *Session) Continue(ctx context.Context) (chat.Outcome, error) {
	return s.Client.Complete(ctx, s.Conv)
}

// ManagedCompletion sends the user text and returns the model's answer.
// If the model asks for a function instead, it returns a FunctionCallError
// without executing anything.
func (s *Session) ManagedCompletion(ctx context.Context, userText string) (string, error) {
	outcome, err := s.Complete(ctx, userText)
	if err != nil {
		return "", err
	}
	if outcome.IsFunctionCall() {
		return "", &FunctionCallError{Call: outcome.Call}
	}
	return outcome.Content, nil
}
