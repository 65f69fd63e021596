package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ToolSearchName is the name of the meta-tool that lets the model discover
// deferred-tier tools by keyword.
const ToolSearchName = "ToolSearch"

// ToolSearchTool lists deferred tools matching a query. Calling it is the
// model-driven way to activate the deferred tier mid-conversation; the
// caller (the agentic loop) is responsible for actually widening the tool
// list on the next turn once this has been called.
type ToolSearchTool struct {
	all func() []Definition
}

// NewToolSearchTool builds a ToolSearch tool backed by a registry's full
// definition list (core and deferred).
func NewToolSearchTool(all func() []Definition) *ToolSearchTool {
	return &ToolSearchTool{all: all}
}

func (t *ToolSearchTool) Name() string { return ToolSearchName }
func (t *ToolSearchTool) Description() string {
	return "Search for available external tools by keyword. Activates deferred tools for the rest of this task."
}

func (t *ToolSearchTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Optional keyword to filter by name or description."},
		},
		"required": []string{},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ToolSearchTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal(params, &input)
	query := strings.ToLower(strings.TrimSpace(input.Query))

	var deferred []Definition
	for _, d := range t.all() {
		if IsDeferred(d.Name) {
			deferred = append(deferred, d)
		}
	}

	if len(deferred) == 0 {
		return &Result{Content: "No deferred tools are available in this session."}, nil
	}

	var matches []Definition
	for _, d := range deferred {
		if query == "" || strings.Contains(strings.ToLower(d.Name), query) || strings.Contains(strings.ToLower(d.Description), query) {
			matches = append(matches, d)
		}
	}

	if len(matches) == 0 {
		return &Result{Content: fmt.Sprintf("No deferred tools matching %q. Call ToolSearch without a query to list all.", input.Query)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d tool(s):\n\n", len(matches))
	for _, d := range matches {
		parts := strings.SplitN(d.Name, "__", 3)
		server := "unknown"
		action := d.Name
		if len(parts) >= 2 {
			server = parts[1]
		}
		if len(parts) >= 3 {
			action = parts[2]
		}
		desc := d.Description
		if len(desc) > 80 {
			desc = desc[:80] + "…"
		}
		fmt.Fprintf(&b, "- %s (%s) — %s\n", action, server, desc)
	}
	b.WriteString("\nThese tools are now activated for this session.")

	return &Result{Content: b.String()}, nil
}
