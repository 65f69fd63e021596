package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ReadTool reads a file and returns it with 1-based, six-column-aligned
// line numbers, mirroring the worker's view of `cat -n`.
type ReadTool struct {
	resolver Resolver
}

// NewReadTool builds a read tool rooted at workspace.
func NewReadTool(workspace string) *ReadTool {
	return &ReadTool{resolver: Resolver{Root: workspace}}
}

func (t *ReadTool) Name() string        { return "read" }
func (t *ReadTool) Description() string { return "Read a file, optionally a line range." }

func (t *ReadTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{"type": "string", "description": "Path to the file."},
			"offset":    map[string]any{"type": "integer", "description": "1-based line to start from.", "minimum": 1},
			"limit":     map[string]any{"type": "integer", "description": "Maximum number of lines to return."},
		},
		"required": []string{"file_path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult("invalid parameters: %v", err), nil
	}
	if input.FilePath == "" {
		return errorResult("missing required parameter: file_path"), nil
	}

	resolved, err := t.resolver.Resolve(input.FilePath)
	if err != nil {
		return errorResult("%v", err), nil
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return errorResult("cannot read file %q: %v", resolved, err), nil
	}

	lines := strings.Split(string(content), "\n")
	offset := input.Offset
	if offset < 1 {
		offset = 1
	}
	start := offset - 1
	if start >= len(lines) {
		return &Result{Content: ""}, nil
	}
	end := len(lines)
	if input.Limit > 0 && start+input.Limit < end {
		end = start + input.Limit
	}

	var b strings.Builder
	for i, line := range lines[start:end] {
		fmt.Fprintf(&b, "%6d\t%s\n", start+i+1, line)
	}
	return &Result{Content: b.String()}, nil
}
