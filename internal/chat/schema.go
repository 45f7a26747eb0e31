package chat

import (
	"encoding/json"
	"fmt"
)

// Function describes a callable function the model may request. The caller
// declares these on a Context; the model sees them in the request body and
// may answer with a call to one of them instead of text.
type Function struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  *Parameters `json:"parameters,omitempty"`
}

// Parameters is the JSON-Schema-shaped argument specification of a function.
// The top-level type is always "object".
type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one named argument of a function.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// NewProperty builds a Property, failing with SchemaError on an empty type.
func NewProperty(typ, description string, enum []string) (Property, error) {
	if typ == "" {
		return Property{}, &SchemaError{Reason: "property type is empty"}
	}
	return Property{Type: typ, Description: description, Enum: enum}, nil
}

// NewParameters builds an object schema from the given properties. Every
// name in required must be a key of properties.
func NewParameters(properties map[string]Property, required []string) (*Parameters, error) {
	p := &Parameters{Type: "object", Properties: properties, Required: required}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parameters) validate() error {
	for name, prop := range p.Properties {
		if prop.Type == "" {
			return &SchemaError{Reason: fmt.Sprintf("property %q has empty type", name)}
		}
	}
	for _, name := range p.Required {
		if _, ok := p.Properties[name]; !ok {
			return &SchemaError{Reason: fmt.Sprintf("required property %q not declared", name)}
		}
	}
	return nil
}

// Validate checks the structural invariants of the specification. The
// constructors enforce them for piecewise construction; Validate covers
// literals and parsed documents.
func (f *Function) Validate() error {
	if f.Name == "" {
		return &SchemaError{Reason: "function name is empty"}
	}
	if f.Parameters != nil {
		if err := f.Parameters.validate(); err != nil {
			return err
		}
	}
	return nil
}

// ParseFunction reads a function specification from a JSON document.
// Unknown fields are ignored for forward compatibility; a missing name or
// a broken required/properties pairing is a SchemaError.
func ParseFunction(data []byte) (Function, error) {
	var f Function
	if err := json.Unmarshal(data, &f); err != nil {
		return Function{}, &SchemaError{Reason: "parsing specification: " + err.Error()}
	}
	if err := f.Validate(); err != nil {
		return Function{}, err
	}
	return f, nil
}
