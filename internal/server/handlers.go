package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calebreed/parley/internal/chat"
	"github.com/calebreed/parley/internal/profile"
	"github.com/calebreed/parley/internal/session"
	"github.com/calebreed/parley/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Session handlers ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	opts := storage.SessionListOptions{}

	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = storage.SessionStatus(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	sessions, err := s.store.ListSessions(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if sessions == nil {
		sessions = []storage.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	Model   string `json:"model"`
	Profile string `json:"profile"`
	Title   string `json:"title"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	// Resolve the model now so listings show it: request, else profile,
	// else the configured default.
	model := req.Model
	if req.Profile != "" {
		prof, err := profile.LoadNamed(s.cfg.Profiles.Dir, req.Profile)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown profile %q: %v", req.Profile, err))
			return
		}
		if model == "" {
			model = prof.Model
		}
	}
	if model == "" {
		model = s.cfg.Chat.Model
	}

	sess := &storage.Session{
		ID:      uuid.New().String(),
		Title:   req.Title,
		Status:  storage.StatusActive,
		Model:   model,
		Profile: req.Profile,
	}

	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Remove from active sessions first
	s.sessions.Remove(id)

	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	// Drop the live conversation; archived sessions stay readable
	s.sessions.Remove(sess.ID)

	sess.Status = storage.StatusArchived
	if err := s.store.UpdateSession(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// --- Turn and exchange handlers ---

func (s *Server) handleGetTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	turns, err := s.store.LoadTurns(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if turns == nil {
		turns = []chat.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleExportSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	turns, err := s.store.LoadTurns(r.Context(), sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, storage.ExportMarkdown(sess, turns))
	case "json":
		data, err := storage.ExportJSON(sess, turns)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "unknown format: "+format)
	}
}

type completionRequest struct {
	Content string `json:"content"`
}

// completionEnvelope is the exchange result: either the model's text answer
// or a function call the HTTP caller must execute and answer via the
// function-result endpoint.
type completionEnvelope struct {
	Type         string             `json:"type"` // content | function_call
	Content      string             `json:"content,omitempty"`
	FunctionCall *chat.FunctionCall `json:"function_call,omitempty"`
	FinishReason string             `json:"finish_reason,omitempty"`
	Usage        *chat.Usage        `json:"usage,omitempty"`
}

func envelopeFor(outcome chat.Outcome) completionEnvelope {
	env := completionEnvelope{
		FinishReason: outcome.FinishReason,
		Usage:        outcome.Usage,
	}
	if outcome.IsFunctionCall() {
		env.Type = "function_call"
		env.FunctionCall = outcome.Call
	} else {
		env.Type = "content"
		env.Content = outcome.Content
	}
	return env
}

// errorStatus maps exchange failures onto response codes. Upstream and
// protocol failures are the gateway's fault; a busy conversation is a
// conflict.
func errorStatus(err error) int {
	var te *chat.TransportError
	var pe *chat.ProtocolError
	switch {
	case errors.Is(err, chat.ErrCompletionInFlight):
		return http.StatusConflict
	case errors.As(err, &te), errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// runFunctionRounds executes registry-provided functions until the model
// answers with text, requests a function the registry cannot serve, or the
// round limit is hit. The first outcome it cannot advance is returned for
// the caller to handle.
func (s *Server) runFunctionRounds(ctx context.Context, as *session.ActiveSession, outcome chat.Outcome, err error) (chat.Outcome, error) {
	for rounds := 0; err == nil && outcome.IsFunctionCall(); rounds++ {
		if s.registry == nil || !s.registry.Has(outcome.Call.Name) {
			return outcome, nil // caller-side function
		}
		if rounds >= as.MaxRounds {
			return outcome, fmt.Errorf("function call loop exceeded %d rounds", as.MaxRounds)
		}

		result, callErr := s.registry.Call(ctx, outcome.Call)
		if callErr != nil {
			// The model sees the failure and can react to it
			result = "error: " + callErr.Error()
		}
		if appendErr := as.Session.Conv.AppendFunctionResult(outcome.Call.Name, result); appendErr != nil {
			return outcome, appendErr
		}
		outcome, err = as.Session.Continue(ctx)
	}
	return outcome, err
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	as, err := s.sessions.GetOrCreate(r.Context(), sess, s.cfg, s.store, s.registry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("initializing session: %v", err))
		return
	}

	if !as.TryAcquire() {
		writeError(w, http.StatusConflict, "an exchange is already running for this session")
		return
	}
	defer as.Release()

	// Auto-generate title from first message
	if sess.Title == "" {
		sess.Title = generateTitle(req.Content)
		s.store.UpdateSession(r.Context(), sess)
	}

	ctx, cancel := context.WithCancel(r.Context())
	as.Cancel = cancel
	defer func() {
		cancel()
		as.Cancel = nil
	}()

	outcome, err := as.Session.Complete(ctx, req.Content)
	outcome, err = s.runFunctionRounds(ctx, as, outcome, err)

	// Persist whatever the exchange appended, even on failure
	if saveErr := s.store.SaveTurns(r.Context(), sess.ID, as.Session.Conv.Turns()); saveErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("saving turns: %v", saveErr))
		return
	}

	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelopeFor(outcome))
}

type functionResultRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleFunctionResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req functionResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	as, err := s.sessions.GetOrCreate(r.Context(), sess, s.cfg, s.store, s.registry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("initializing session: %v", err))
		return
	}

	if !as.TryAcquire() {
		writeError(w, http.StatusConflict, "an exchange is already running for this session")
		return
	}
	defer as.Release()

	if err := as.Session.Conv.AppendFunctionResult(req.Name, req.Content); err != nil {
		var unknown *chat.UnknownFunctionError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	as.Cancel = cancel
	defer func() {
		cancel()
		as.Cancel = nil
	}()

	outcome, err := as.Session.Continue(ctx)
	outcome, err = s.runFunctionRounds(ctx, as, outcome, err)

	if saveErr := s.store.SaveTurns(r.Context(), sess.ID, as.Session.Conv.Turns()); saveErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("saving turns: %v", saveErr))
		return
	}

	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelopeFor(outcome))
}

// --- Function listing ---

func (s *Server) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	fns := []chat.Function{}
	if s.registry != nil {
		fns = append(fns, s.registry.Functions()...)
	}
	writeJSON(w, http.StatusOK, fns)
}

// generateTitle creates a session title from the first user message.
func generateTitle(firstMessage string) string {
	t := strings.TrimSpace(firstMessage)
	if len(t) > 80 {
		t = t[:80] + "..."
	}
	return t
}
