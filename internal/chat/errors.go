package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrCompletionInFlight is returned when Complete is called while
	// another completion for the same Context has not finished.
	ErrCompletionInFlight = errors.New("completion already in flight for this context")

	// ErrMissingAPIKey is returned by Config.Validate when no credential
	// is configured.
	ErrMissingAPIKey = errors.New("api key is required")
)

// SchemaError reports a malformed function specification, at construction
// or when parsing an external document.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "invalid function schema: " + e.Reason
}

// DuplicateFunctionError reports a second registration under a name that is
// already taken.
type DuplicateFunctionError struct {
	Name string
}

func (e *DuplicateFunctionError) Error() string {
	return fmt.Sprintf("function %q already registered", e.Name)
}

// UnknownFunctionError reports a reference to a function that was never
// registered on the context.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// ProtocolError reports a response from the service that does not match the
// expected shape, or one that references an undeclared function. The
// conversation is left without the malformed turn and remains resumable.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return "protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TransportError reports an HTTP or network layer failure. StatusCode is
// zero when the request never produced a response.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: API error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
