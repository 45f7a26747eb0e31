package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/calebreed/parley/internal/chat"
)

// ToolServerConfig describes an MCP tool server binary.
type ToolServerConfig struct {
	Binary  string            `mapstructure:"binary"`
	Env     map[string]string `mapstructure:"env"`
	Enabled bool              `mapstructure:"enabled"`
}

// Registry manages multiple MCP tool server connections and routes
// function calls to the server that declared them.
type Registry struct {
	order         []string                  // server registration order
	connections   map[string]*MCPConnection // server name → connection
	functionIndex map[string]string         // function name → server name
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		connections:   make(map[string]*MCPConnection),
		functionIndex: make(map[string]string),
	}
}

// Register launches an MCP tool server and indexes its functions.
func (r *Registry) Register(name string, cfg ToolServerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	// Build environment variables
	var env []string
	env = append(env, os.Environ()...)
	for k, v := range cfg.Env {
		// Expand environment variable references like ${VAR}
		if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
			envVar := v[2 : len(v)-1]
			v = os.Getenv(envVar)
		}
		env = append(env, k+"="+v)
	}

	conn, err := NewMCPConnection(name, cfg.Binary, env)
	if err != nil {
		return err
	}

	r.connections[name] = conn
	r.order = append(r.order, name)
	for _, fnName := range conn.FunctionNames() {
		r.functionIndex[fnName] = name
	}

	return nil
}

// Functions returns the function specifications from every server, in
// server registration order.
func (r *Registry) Functions() []chat.Function {
	var all []chat.Function
	for _, name := range r.order {
		all = append(all, r.connections[name].Functions()...)
	}
	return all
}

// FunctionNames returns every discovered function name, in server
// registration order.
func (r *Registry) FunctionNames() []string {
	var names []string
	for _, name := range r.order {
		names = append(names, r.connections[name].FunctionNames()...)
	}
	return names
}

// Has reports whether a function of that name was discovered on any server.
func (r *Registry) Has(name string) bool {
	_, ok := r.functionIndex[name]
	return ok
}

// Call executes a function call the model requested, routing it to the
// server that declared the function. The call's raw argument text is
// decoded into the map shape MCP expects.
func (r *Registry) Call(ctx context.Context, call *chat.FunctionCall) (string, error) {
	serverName, ok := r.functionIndex[call.Name]
	if !ok {
		return "", fmt.Errorf("no server provides function %q", call.Name)
	}
	args, err := call.ArgumentMap()
	if err != nil {
		return "", fmt.Errorf("decoding arguments for %s: %w", call.Name, err)
	}
	return r.connections[serverName].CallTool(ctx, call.Name, args)
}

// HasFunctions reports whether any server contributed functions.
func (r *Registry) HasFunctions() bool {
	return len(r.functionIndex) > 0
}

// Close shuts down all MCP server connections.
func (r *Registry) Close() {
	for _, conn := range r.connections {
		conn.Close()
	}
}
