package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Demo tool server: answers get_current_weather with deterministic canned
// data so the function-calling loop can be exercised without a weather API.

var forecasts = []string{"sunny", "partly cloudy", "overcast", "light rain", "windy"}

func main() {
	s := server.NewMCPServer("parley-weather", "0.1.0")

	s.AddTool(mcp.Tool{
		Name:        "get_current_weather",
		Description: "Get the current weather in a given location.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "The city and country, e.g. Madrid, Spain",
				},
				"unit": map[string]any{
					"type":        "string",
					"description": "Temperature unit",
					"enum":        []string{"celsius", "fahrenheit"},
				},
			},
			Required: []string{"location"},
		},
	}, handleCurrentWeather)

	if err := server.ServeStdio(s); err != nil {
		fmt.Printf("server error: %v\n", err)
	}
}

func handleCurrentWeather(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	location, _ := args["location"].(string)
	if location == "" {
		return errResult("error: 'location' is required"), nil
	}

	unit, _ := args["unit"].(string)
	if unit == "" {
		unit = "celsius"
	}
	if unit != "celsius" && unit != "fahrenheit" {
		return errResult(fmt.Sprintf("error: unknown unit %q", unit)), nil
	}

	// Stable per-location fake readings
	h := fnv.New32a()
	h.Write([]byte(location))
	seed := h.Sum32()

	temperature := 8 + int(seed%24)
	if unit == "fahrenheit" {
		temperature = temperature*9/5 + 32
	}

	report := map[string]any{
		"location":    location,
		"temperature": temperature,
		"unit":        unit,
		"forecast":    forecasts[seed%uint32(len(forecasts))],
	}
	data, _ := json.Marshal(report)

	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
