package chat

import "encoding/json"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// FunctionCall is a request from the model to invoke a declared function.
// Arguments is the raw JSON text exactly as the service produced it; it is
// carried opaquely and decoded only on demand.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ArgumentMap decodes the raw argument payload into structured form.
func (fc FunctionCall) ArgumentMap() (map[string]any, error) {
	args := map[string]any{}
	if fc.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// Turn is a single entry in a conversation history. Its JSON form is the
// wire message shape: the completions API requires content on every
// message, so an assistant turn carrying a function call serializes
// content as the empty string.
type Turn struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// AssistantCallTurn builds the assistant turn for a function-call request.
// Such a turn carries no content.
func AssistantCallTurn(name, arguments string) Turn {
	return Turn{Role: RoleAssistant, FunctionCall: &FunctionCall{Name: name, Arguments: arguments}}
}

// FunctionResultTurn carries the result of an executed function back to the
// model. Name records which function produced it.
func FunctionResultTurn(name, result string) Turn {
	return Turn{Role: RoleFunction, Name: name, Content: result}
}
