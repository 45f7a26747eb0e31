package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calebreed/parley/internal/chat"
)

// ExportMarkdown renders a session and its turns as a markdown transcript.
func ExportMarkdown(sess *Session, turns []chat.Turn) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", sess.Title))
	b.WriteString(fmt.Sprintf("- **Session:** %s\n", sess.ID))
	b.WriteString(fmt.Sprintf("- **Model:** %s\n", sess.Model))
	if sess.Profile != "" {
		b.WriteString(fmt.Sprintf("- **Profile:** %s\n", sess.Profile))
	}
	b.WriteString(fmt.Sprintf("- **Created:** %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("- **Status:** %s\n", sess.Status))
	b.WriteString("\n---\n\n")

	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleSystem:
			continue
		case chat.RoleUser:
			b.WriteString(fmt.Sprintf("## You\n\n%s\n\n", turn.Content))
		case chat.RoleAssistant:
			if turn.FunctionCall != nil {
				args := turn.FunctionCall.Arguments
				if args == "" {
					args = "{}"
				}
				b.WriteString(fmt.Sprintf("**Function Call:** `%s`\n```json\n%s\n```\n\n", turn.FunctionCall.Name, args))
				continue
			}
			b.WriteString(fmt.Sprintf("## Assistant\n\n%s\n\n", turn.Content))
		case chat.RoleFunction:
			b.WriteString(fmt.Sprintf("<details>\n<summary>Result of %s</summary>\n\n```\n%s\n```\n</details>\n\n", turn.Name, turn.Content))
		}
	}

	return b.String()
}

// ExportJSON renders a session and its turns as formatted JSON.
func ExportJSON(sess *Session, turns []chat.Turn) ([]byte, error) {
	export := struct {
		Session *Session    `json:"session"`
		Turns   []chat.Turn `json:"turns"`
	}{
		Session: sess,
		Turns:   turns,
	}
	return json.MarshalIndent(export, "", "  ")
}
