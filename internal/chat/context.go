package chat

import (
	"slices"
	"sync/atomic"
)

// Context holds one conversation: the model identifier, the ordered turn
// history, and the registered function specifications. History grows only
// through the append methods, in insertion order, and is never reordered.
// A Context is owned by one conversation and permits one in-flight
// completion at a time; independent conversations share nothing.
type Context struct {
	model     string
	turns     []Turn
	functions map[string]Function
	order     []string
	inFlight  atomic.Bool
}

// NewContext creates an empty conversation for the given model.
func NewContext(model string) *Context {
	return &Context{
		model:     model,
		functions: make(map[string]Function),
	}
}

func (c *Context) Model() string { return c.model }

// SetModel switches the model used for subsequent completions.
func (c *Context) SetModel(model string) { c.model = model }

// RegisterFunction adds a specification to the registry. Re-registering a
// name fails with DuplicateFunctionError rather than overwriting; a
// re-declared function is almost always a caller bug. The registry is
// unchanged on failure.
func (c *Context) RegisterFunction(fn Function) error {
	if err := fn.Validate(); err != nil {
		return err
	}
	if _, exists := c.functions[fn.Name]; exists {
		return &DuplicateFunctionError{Name: fn.Name}
	}
	c.functions[fn.Name] = fn
	c.order = append(c.order, fn.Name)
	return nil
}

// Functions returns the registered specifications in registration order.
func (c *Context) Functions() []Function {
	out := make([]Function, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.functions[name])
	}
	return out
}

// HasFunction reports whether name is registered.
func (c *Context) HasFunction(name string) bool {
	_, ok := c.functions[name]
	return ok
}

// AppendSystem adds a system turn.
func (c *Context) AppendSystem(content string) {
	c.turns = append(c.turns, SystemTurn(content))
}

// AppendUser adds a user turn.
func (c *Context) AppendUser(content string) {
	c.turns = append(c.turns, UserTurn(content))
}

// AppendAssistantContent adds an assistant turn carrying a text answer.
func (c *Context) AppendAssistantContent(content string) {
	c.turns = append(c.turns, AssistantTurn(content))
}

// AppendAssistantFunctionCall adds an assistant turn carrying a
// function-call request. The name must be registered; on failure the
// history is unchanged.
func (c *Context) AppendAssistantFunctionCall(name, arguments string) error {
	if !c.HasFunction(name) {
		return &UnknownFunctionError{Name: name}
	}
	c.turns = append(c.turns, AssistantCallTurn(name, arguments))
	return nil
}

// AppendFunctionResult adds the result of an executed function call. The
// name must have been registered.
func (c *Context) AppendFunctionResult(name, result string) error {
	if !c.HasFunction(name) {
		return &UnknownFunctionError{Name: name}
	}
	c.turns = append(c.turns, FunctionResultTurn(name, result))
	return nil
}

// Turns returns a copy of the history in conversation order.
func (c *Context) Turns() []Turn {
	return slices.Clone(c.turns)
}

// Len returns the number of turns in the history.
func (c *Context) Len() int { return len(c.turns) }

// SetTurns replaces the history wholesale. Used when resuming a persisted
// session; all other mutation goes through the append methods.
func (c *Context) SetTurns(turns []Turn) {
	c.turns = slices.Clone(turns)
}

// Reset drops all turns, keeping the model and the function registry.
func (c *Context) Reset() { c.turns = nil }

// beginCompletion claims the in-flight slot. A conversation is Idle or
// Awaiting, nothing in between; overlapping completions would interleave
// turn ordering.
func (c *Context) beginCompletion() error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrCompletionInFlight
	}
	return nil
}

func (c *Context) endCompletion() { c.inFlight.Store(false) }
