package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/calebreed/parley/internal/chat"
)

// MCPConnection wraps an mcp-go stdio client for a single tool server.
type MCPConnection struct {
	name      string
	client    *client.Client
	functions []chat.Function
}

// NewMCPConnection launches an MCP server subprocess, initializes the
// connection, and converts the discovered tools into function specifications.
// Tools whose schemas the functions protocol cannot express are skipped.
func NewMCPConnection(name, binary string, env []string) (*MCPConnection, error) {
	c, err := client.NewStdioMCPClient(binary, env)
	if err != nil {
		return nil, fmt.Errorf("starting MCP server %s (%s): %w", name, binary, err)
	}

	ctx := context.Background()

	// Initialize the MCP protocol
	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ClientInfo: mcp.Implementation{
				Name:    "parley",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing MCP server %s: %w", name, err)
	}

	// Discover tools
	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("listing tools from %s: %w", name, err)
	}

	var fns []chat.Function
	for _, t := range result.Tools {
		fn, err := functionFromTool(t)
		if err != nil {
			log.Printf("tools: skipping %s from %s: %v", t.Name, name, err)
			continue
		}
		fns = append(fns, fn)
	}

	return &MCPConnection{
		name:      name,
		client:    c,
		functions: fns,
	}, nil
}

// functionFromTool maps an MCP tool schema onto a function specification.
// MCP schemas are arbitrary JSON Schema while the functions protocol only
// carries flat typed properties with string enums, so the conversion goes
// through the specification parser and rejects what it cannot express.
func functionFromTool(t mcp.Tool) (chat.Function, error) {
	doc := map[string]any{"name": t.Name}
	if t.Description != "" {
		doc["description"] = t.Description
	}
	if t.InputSchema.Type != "" {
		params := map[string]any{"type": t.InputSchema.Type}
		if t.InputSchema.Properties != nil {
			params["properties"] = t.InputSchema.Properties
		}
		if len(t.InputSchema.Required) > 0 {
			params["required"] = t.InputSchema.Required
		}
		doc["parameters"] = params
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return chat.Function{}, err
	}
	return chat.ParseFunction(data)
}

// Functions returns the function specifications discovered on this server.
func (mc *MCPConnection) Functions() []chat.Function {
	return mc.functions
}

// FunctionNames returns the names of the converted functions.
func (mc *MCPConnection) FunctionNames() []string {
	names := make([]string, len(mc.functions))
	for i, fn := range mc.functions {
		names[i] = fn.Name
	}
	return names
}

// CallTool invokes a tool on this MCP server and returns the text result.
func (mc *MCPConnection) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := mc.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling tool %s on %s: %w", name, mc.name, err)
	}

	// Extract text content from the result
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}

	text := strings.Join(parts, "\n")
	if result.IsError {
		return "error: " + text, nil
	}
	return text, nil
}

// Close shuts down the MCP server subprocess.
func (mc *MCPConnection) Close() {
	mc.client.Close()
}
