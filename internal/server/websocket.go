package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/calebreed/parley/internal/chat"
	"github.com/calebreed/parley/internal/session"
	"github.com/calebreed/parley/internal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // bind to localhost or front with a proxy for auth
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// wsOutgoing is a message to the client. Every turn an exchange appends is
// sent as its own event; the exchange then ends with either a done event,
// a function_call event the client must answer, or an error event.
type wsOutgoing struct {
	Type    string     `json:"type"`
	Turn    *chat.Turn `json:"turn,omitempty"`
	Content string     `json:"content,omitempty"`
	Name    string     `json:"name,omitempty"`
	Args    any        `json:"args,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify session exists
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	// Upgrade to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Get or create active session
	as, err := s.sessions.GetOrCreate(r.Context(), sess, s.cfg, s.store, s.registry)
	if err != nil {
		wsWriteJSON(conn, wsOutgoing{Type: "error", Content: fmt.Sprintf("initializing session: %v", err)})
		return
	}

	// Read loop
	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Printf("websocket read error: %v", err)
			return
		}

		if msg.Type != "message" || msg.Content == "" {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "invalid message"})
			continue
		}

		s.processWebSocketMessage(r.Context(), conn, as, sess, msg.Content)
	}
}

func (s *Server) processWebSocketMessage(parent context.Context, conn *websocket.Conn, as *session.ActiveSession, sess *storage.Session, content string) {
	// One exchange at a time per session
	if !as.TryAcquire() {
		wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "an exchange is already running for this session"})
		return
	}
	defer as.Release()

	// Auto-generate title from first message
	if sess.Title == "" {
		sess.Title = generateTitle(content)
		s.store.UpdateSession(context.Background(), sess)
	}

	// Cancellable so an archive or delete can interrupt the exchange
	ctx, cancel := context.WithCancel(parent)
	as.Cancel = cancel
	defer func() {
		cancel()
		as.Cancel = nil
	}()

	startLen := as.Session.Conv.Len()

	outcome, err := as.Session.Complete(ctx, content)
	outcome, err = s.runFunctionRounds(ctx, as, outcome, err)

	// Report every turn the exchange appended, even from a failed exchange
	turns := as.Session.Conv.Turns()
	for i := startLen; i < len(turns); i++ {
		wsWriteJSON(conn, wsOutgoing{Type: "turn", Turn: &turns[i]})
	}

	// Save turns regardless of error
	if saveErr := s.store.SaveTurns(context.Background(), sess.ID, turns); saveErr != nil {
		log.Printf("failed to save turns for session %s: %v", sess.ID, saveErr)
	}

	if err != nil {
		if ctx.Err() != nil {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "interrupted"})
		} else {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error()})
		}
		return
	}

	if outcome.IsFunctionCall() {
		out := wsOutgoing{Type: "function_call", Name: outcome.Call.Name}
		if args, err := outcome.Call.ArgumentMap(); err == nil {
			out.Args = args
		} else {
			out.Args = outcome.Call.Arguments
		}
		wsWriteJSON(conn, out)
		return
	}

	wsWriteJSON(conn, wsOutgoing{Type: "done", Content: outcome.Content})
}

func wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}
