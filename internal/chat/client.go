package chat

import (
	"context"
	"fmt"
)

// Outcome is the result of one completion cycle: either a text answer or a
// request to invoke a declared function, never both. FinishReason and
// Usage are passed through from the response unvalidated.
type Outcome struct {
	Content      string
	Call         *FunctionCall
	FinishReason string
	Usage        *Usage
}

// IsFunctionCall reports whether the model requested a function invocation
// instead of answering with text.
func (o Outcome) IsFunctionCall() bool { return o.Call != nil }

// Client runs completion cycles against a Transport. It never retries;
// retry policy belongs to the caller or a wrapping transport.
type Client struct {
	transport Transport
}

// NewClient builds a Client with the HTTP transport described by cfg.
func NewClient(cfg Config) (*Client, error) {
	t, err := NewHTTPTransport(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{transport: t}, nil
}

// NewClientWithTransport builds a Client around an existing transport,
// typically a fake in tests or a retrying decorator.
func NewClientWithTransport(t Transport) *Client {
	return &Client{transport: t}
}

// Complete runs exactly one request/response cycle for the conversation:
// build the payload, send it, parse the reply, and append the assistant
// turn. The turn is appended only after the response fully validates, so
// any failure, including cancellation mid-flight, leaves the conversation
// in its pre-call state.
func (c *Client) Complete(ctx context.Context, conv *Context) (Outcome, error) {
	if err := conv.beginCompletion(); err != nil {
		return Outcome{}, err
	}
	defer conv.endCompletion()

	payload, err := conv.WirePayload()
	if err != nil {
		return Outcome{}, fmt.Errorf("building payload: %w", err)
	}

	body, err := c.transport.Send(ctx, payload)
	if err != nil {
		return Outcome{}, err
	}

	resp, err := parseCompletionResponse(body)
	if err != nil {
		return Outcome{}, err
	}

	ch := resp.Choices[0]
	outcome := Outcome{
		FinishReason: ch.FinishReason,
		Usage:        resp.Usage,
	}

	msg := ch.Message
	switch {
	case msg.FunctionCall != nil:
		fc := msg.FunctionCall
		if fc.Name == "" {
			return Outcome{}, &ProtocolError{Reason: "function call has no name"}
		}
		if err := conv.AppendAssistantFunctionCall(fc.Name, fc.Arguments); err != nil {
			return Outcome{}, &ProtocolError{Reason: "response referenced undeclared function", Err: err}
		}
		outcome.Call = &FunctionCall{Name: fc.Name, Arguments: fc.Arguments}
	case msg.Content != nil:
		conv.AppendAssistantContent(*msg.Content)
		outcome.Content = *msg.Content
	default:
		return Outcome{}, &ProtocolError{Reason: "response carries neither content nor function call"}
	}

	return outcome, nil
}
