package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/calebreed/parley/internal/chat"
)

func exportFixture() (*Session, []chat.Turn) {
	sess := &Session{
		ID:        "abc12345-0000-0000-0000-000000000000",
		Title:     "weather chat",
		Status:    StatusActive,
		Model:     "gpt-3.5-turbo-0613",
		Profile:   "weather",
		CreatedAt: time.Date(2023, 6, 14, 12, 0, 0, 0, time.UTC),
	}
	turns := []chat.Turn{
		chat.SystemTurn("You are a weather assistant."),
		chat.UserTurn("Weather in Madrid?"),
		chat.AssistantCallTurn("get_current_weather", `{"location":"Madrid"}`),
		chat.FunctionResultTurn("get_current_weather", `{"temperature":22}`),
		chat.AssistantTurn("22C and sunny."),
	}
	return sess, turns
}

func TestExportMarkdown(t *testing.T) {
	sess, turns := exportFixture()
	md := ExportMarkdown(sess, turns)

	for _, want := range []string{
		"# weather chat",
		"## You",
		"Weather in Madrid?",
		"**Function Call:** `get_current_weather`",
		`{"location":"Madrid"}`,
		"Result of get_current_weather",
		"## Assistant",
		"22C and sunny.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}

	// System prompts stay out of the transcript.
	if strings.Contains(md, "You are a weather assistant.") {
		t.Error("markdown should not include the system prompt")
	}
}

func TestExportJSON(t *testing.T) {
	sess, turns := exportFixture()
	data, err := ExportJSON(sess, turns)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var decoded struct {
		Session Session     `json:"session"`
		Turns   []chat.Turn `json:"turns"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshaling export: %v", err)
	}
	if decoded.Session.ID != sess.ID {
		t.Errorf("session id = %q", decoded.Session.ID)
	}
	if len(decoded.Turns) != 5 {
		t.Errorf("turns = %d, want 5", len(decoded.Turns))
	}
	if decoded.Turns[2].FunctionCall == nil {
		t.Error("function call turn lost in export")
	}
}
