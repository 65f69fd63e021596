package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteTool creates or overwrites a file, creating parent directories as
// needed.
type WriteTool struct {
	resolver Resolver
}

// NewWriteTool builds a write tool rooted at workspace.
func NewWriteTool(workspace string) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: workspace}}
}

func (t *WriteTool) Name() string        { return "write" }
func (t *WriteTool) Description() string { return "Write content to a file, creating it if necessary." }

func (t *WriteTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{"type": "string", "description": "Path to the file."},
			"content":   map[string]any{"type": "string", "description": "Content to write."},
		},
		"required": []string{"file_path", "content"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *WriteTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
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

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return errorResult("cannot create parent directory for %q: %v", resolved, err), nil
	}
	// Write-temp-then-rename so a concurrent reader never sees a partial
	// file.
	tmp := resolved + ".tmp"
	if err := os.WriteFile(tmp, []byte(input.Content), 0o644); err != nil {
		return errorResult("cannot write file %q: %v", resolved, err), nil
	}
	if err := os.Rename(tmp, resolved); err != nil {
		return errorResult("cannot write file %q: %v", resolved, err), nil
	}

	return &Result{Content: fmt.Sprintf("Wrote %d lines to %s", countLines(input.Content), resolved)}, nil
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}
