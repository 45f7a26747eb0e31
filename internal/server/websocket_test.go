package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/calebreed/parley/internal/chat"
)

func dialWebSocket(t *testing.T, ts *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + sessionID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// readUntilFinal collects turn events until a terminal event arrives.
func readUntilFinal(t *testing.T, conn *websocket.Conn) ([]chat.Turn, wsOutgoing) {
	t.Helper()
	var turns []chat.Turn
	for {
		var ev wsOutgoing
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("reading event: %v", err)
		}
		if ev.Type == "turn" {
			if ev.Turn == nil {
				t.Fatal("turn event without a turn")
			}
			turns = append(turns, *ev.Turn)
			continue
		}
		return turns, ev
	}
}

func TestWebSocketExchange(t *testing.T) {
	upstream := newFakeUpstream(t)
	s := testServer(t, upstream)
	sess := createSession(t, s, map[string]string{})

	ts := httptest.NewServer(s.router)
	defer ts.Close()

	upstream.queue(contentBody("Hello over the socket."))

	conn := dialWebSocket(t, ts, sess.ID)
	if err := conn.WriteJSON(wsIncoming{Type: "message", Content: "Hi"}); err != nil {
		t.Fatalf("writing message: %v", err)
	}

	turns, final := readUntilFinal(t, conn)
	if final.Type == "error" {
		t.Fatalf("error event: %s", final.Content)
	}
	if final.Type != "done" {
		t.Fatalf("final event type = %q, want done", final.Type)
	}
	if final.Content != "Hello over the socket." {
		t.Errorf("done content = %q", final.Content)
	}
	if len(turns) != 2 {
		t.Fatalf("turn events = %d, want 2", len(turns))
	}
	if turns[0].Role != chat.RoleUser || turns[1].Role != chat.RoleAssistant {
		t.Errorf("turn roles = %s, %s", turns[0].Role, turns[1].Role)
	}
}

func TestWebSocketFunctionCall(t *testing.T) {
	upstream := newFakeUpstream(t)
	s := testServer(t, upstream)
	writeWeatherProfile(t, s.cfg.Profiles.Dir)
	sess := createSession(t, s, map[string]string{"profile": "weather"})

	ts := httptest.NewServer(s.router)
	defer ts.Close()

	upstream.queue(functionCallBody("get_current_weather", `{"location": "Oslo, Norway"}`))

	conn := dialWebSocket(t, ts, sess.ID)
	if err := conn.WriteJSON(wsIncoming{Type: "message", Content: "Weather in Oslo?"}); err != nil {
		t.Fatalf("writing message: %v", err)
	}

	turns, final := readUntilFinal(t, conn)
	if final.Type != "function_call" {
		t.Fatalf("final event type = %q, want function_call: %+v", final.Type, final)
	}
	if final.Name != "get_current_weather" {
		t.Errorf("Name = %q", final.Name)
	}
	args, ok := final.Args.(map[string]any)
	if !ok {
		t.Fatalf("Args = %T, want decoded object", final.Args)
	}
	if args["location"] != "Oslo, Norway" {
		t.Errorf("location = %v", args["location"])
	}

	// The system prompt predates the exchange, so only the user turn and
	// the call turn are reported
	if len(turns) != 2 {
		t.Fatalf("turn events = %d, want 2", len(turns))
	}
	if turns[1].FunctionCall == nil {
		t.Error("second turn should carry the function call")
	}
}

func TestWebSocketInvalidMessage(t *testing.T) {
	upstream := newFakeUpstream(t)
	s := testServer(t, upstream)
	sess := createSession(t, s, map[string]string{})

	ts := httptest.NewServer(s.router)
	defer ts.Close()

	conn := dialWebSocket(t, ts, sess.ID)
	if err := conn.WriteJSON(wsIncoming{Type: "bogus"}); err != nil {
		t.Fatalf("writing message: %v", err)
	}

	var ev wsOutgoing
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Type != "error" {
		t.Errorf("event type = %q, want error", ev.Type)
	}
}
