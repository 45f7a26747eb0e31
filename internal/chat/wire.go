package chat

import "encoding/json"

// completionRequest is the wire shape of one request body. Turn's own JSON
// form already matches the message shape the endpoint expects.
type completionRequest struct {
	Model        string     `json:"model"`
	Messages     []Turn     `json:"messages"`
	Functions    []Function `json:"functions,omitempty"`
	FunctionCall string     `json:"function_call,omitempty"`
}

// WirePayload serializes the conversation into the request body: messages
// in order, the declared functions in registration order (omitted entirely
// when none), and the function_call mode hint "auto" only when at least
// one function is registered.
func (c *Context) WirePayload() ([]byte, error) {
	req := completionRequest{
		Model:    c.model,
		Messages: c.turns,
	}
	if req.Messages == nil {
		req.Messages = []Turn{}
	}
	if fns := c.Functions(); len(fns) > 0 {
		req.Functions = fns
		req.FunctionCall = "auto"
	}
	return json.Marshal(req)
}

// completionResponse is the wire shape of the service's reply. Only
// choices[0].message drives the outcome; id, created and usage are
// passthrough metadata.
type completionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Choices []choice `json:"choices"`
	Usage   *Usage   `json:"usage"`
}

type choice struct {
	Index        int          `json:"index"`
	Message      *wireMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// wireMessage keeps content as a pointer to distinguish a null or omitted
// field from an empty answer.
type wireMessage struct {
	Role         Role          `json:"role"`
	Content      *string       `json:"content"`
	FunctionCall *FunctionCall `json:"function_call"`
}

// Usage is the token accounting block passed through from the service,
// never validated.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func parseCompletionResponse(body []byte) (*completionResponse, error) {
	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProtocolError{Reason: "malformed response body", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProtocolError{Reason: "response has no choices"}
	}
	if resp.Choices[0].Message == nil {
		return nil, &ProtocolError{Reason: "response choice has no message"}
	}
	return &resp, nil
}
