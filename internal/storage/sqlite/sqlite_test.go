package sqlite

import (
	"context"
	"testing"

	"github.com/calebreed/parley/internal/chat"
	"github.com/calebreed/parley/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{
		ID:      "abc12345-0000-0000-0000-000000000000",
		Title:   "test session",
		Status:  storage.StatusActive,
		Model:   "gpt-3.5-turbo-0613",
		Profile: "weather",
	}

	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	if got.Title != "test session" {
		t.Errorf("title = %q, want %q", got.Title, "test session")
	}
	if got.Status != storage.StatusActive {
		t.Errorf("status = %q, want %q", got.Status, storage.StatusActive)
	}
	if got.Model != "gpt-3.5-turbo-0613" {
		t.Errorf("model = %q, want %q", got.Model, "gpt-3.5-turbo-0613")
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}
}

func TestGetSessionByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{
		ID:     "abc12345-0000-0000-0000-000000000000",
		Status: storage.StatusActive,
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, "abc12345")
	if err != nil {
		t.Fatalf("GetSession by prefix: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("got ID %q, want %q", got.ID, sess.ID)
	}
}

func TestGetSessionAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc00000-0000-0000-0000-000000000000",
		"abc11111-0000-0000-0000-000000000000",
	} {
		sess := &storage.Session{ID: id, Status: storage.StatusActive}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	_, err := s.GetSession(ctx, "abc")
	if err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
}

func TestListSessions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"aaa", "bbb", "ccc"} {
		sess := &storage.Session{ID: id, Status: storage.StatusActive}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	sessions, err := s.ListSessions(ctx, storage.SessionListOptions{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Errorf("got %d sessions, want 3", len(sessions))
	}
}

func TestListSessionsFilterByStatus(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateSession(ctx, &storage.Session{ID: "a1", Status: storage.StatusActive})
	s.CreateSession(ctx, &storage.Session{ID: "a2", Status: storage.StatusArchived})
	s.CreateSession(ctx, &storage.Session{ID: "a3", Status: storage.StatusActive})

	sessions, err := s.ListSessions(ctx, storage.SessionListOptions{Status: storage.StatusActive})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("got %d active sessions, want 2", len(sessions))
	}
}

func TestListSessionsLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.CreateSession(ctx, &storage.Session{ID: string(rune('a' + i)), Status: storage.StatusActive})
	}

	sessions, err := s.ListSessions(ctx, storage.SessionListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("got %d sessions, want 2", len(sessions))
	}
}

func TestUpdateSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{ID: "upd1", Status: storage.StatusActive}
	s.CreateSession(ctx, sess)

	sess.Title = "updated title"
	sess.Status = storage.StatusArchived
	if err := s.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	got, err := s.GetSession(ctx, "upd1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "updated title" {
		t.Errorf("title = %q, want %q", got.Title, "updated title")
	}
	if got.Status != storage.StatusArchived {
		t.Errorf("status = %q, want %q", got.Status, storage.StatusArchived)
	}
}

func TestDeleteSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{ID: "del1", Status: storage.StatusActive}
	s.CreateSession(ctx, sess)
	s.SaveTurns(ctx, "del1", []chat.Turn{chat.UserTurn("hello")})

	if err := s.DeleteSession(ctx, "del1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	_, err := s.GetSession(ctx, "del1")
	if err == nil {
		t.Fatal("expected error after delete")
	}

	turns, err := s.LoadTurns(ctx, "del1")
	if err != nil {
		t.Fatalf("LoadTurns after delete: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected no turns after delete, got %d", len(turns))
	}
}

func TestSaveAndLoadTurns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{ID: "turn1", Status: storage.StatusActive}
	s.CreateSession(ctx, sess)

	turns := []chat.Turn{
		chat.SystemTurn("You are a weather assistant."),
		chat.UserTurn("What's the weather in Madrid?"),
		chat.AssistantCallTurn("get_current_weather", `{"location":"Madrid, Spain"}`),
		chat.FunctionResultTurn("get_current_weather", `{"temperature":22,"unit":"celsius"}`),
		chat.AssistantTurn("It's 22C in Madrid."),
	}

	if err := s.SaveTurns(ctx, "turn1", turns); err != nil {
		t.Fatalf("SaveTurns: %v", err)
	}

	loaded, err := s.LoadTurns(ctx, "turn1")
	if err != nil {
		t.Fatalf("LoadTurns: %v", err)
	}

	if len(loaded) != 5 {
		t.Fatalf("got %d turns, want 5", len(loaded))
	}

	if loaded[0].Role != chat.RoleSystem {
		t.Errorf("turn[0] role = %q, want system", loaded[0].Role)
	}
	if loaded[2].FunctionCall == nil || loaded[2].FunctionCall.Name != "get_current_weather" {
		t.Errorf("turn[2] function call = %+v", loaded[2].FunctionCall)
	}
	if loaded[2].FunctionCall.Arguments != `{"location":"Madrid, Spain"}` {
		t.Errorf("turn[2] arguments = %q", loaded[2].FunctionCall.Arguments)
	}
	if loaded[3].Name != "get_current_weather" {
		t.Errorf("turn[3] name = %q, want get_current_weather", loaded[3].Name)
	}
}

func TestSaveTurnsOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{ID: "ow1", Status: storage.StatusActive}
	s.CreateSession(ctx, sess)

	// Save initial
	s.SaveTurns(ctx, "ow1", []chat.Turn{chat.UserTurn("first")})

	// Overwrite
	s.SaveTurns(ctx, "ow1", []chat.Turn{
		chat.UserTurn("first"),
		chat.AssistantTurn("second"),
	})

	loaded, err := s.LoadTurns(ctx, "ow1")
	if err != nil {
		t.Fatalf("LoadTurns: %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("got %d turns, want 2", len(loaded))
	}
}

func TestLoadTurnsEmpty(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	turns, err := s.LoadTurns(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("LoadTurns: %v", err)
	}
	if turns != nil {
		t.Errorf("expected nil for nonexistent session, got %v", turns)
	}
}
