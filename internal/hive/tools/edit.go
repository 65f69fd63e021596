package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// EditTool replaces an exact string match inside a file.
type EditTool struct {
	resolver Resolver
}

// NewEditTool builds an edit tool rooted at workspace.
func NewEditTool(workspace string) *EditTool {
	return &EditTool{resolver: Resolver{Root: workspace}}
}

func (t *EditTool) Name() string { return "edit" }
func (t *EditTool) Description() string {
	return "Replace an exact string match in a file."
}

func (t *EditTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path":   map[string]any{"type": "string", "description": "Path to the file."},
			"old_string":  map[string]any{"type": "string", "description": "Exact text to replace."},
			"new_string":  map[string]any{"type": "string", "description": "Replacement text."},
			"replace_all": map[string]any{"type": "boolean", "description": "Replace every occurrence (default: false, requires a unique match)."},
		},
		"required": []string{"file_path", "old_string", "new_string"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *EditTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		FilePath   string `json:"file_path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult("invalid parameters: %v", err), nil
	}
	if input.FilePath == "" || input.OldString == "" {
		return errorResult("missing required parameter: file_path or old_string"), nil
	}

	resolved, err := t.resolver.Resolve(input.FilePath)
	if err != nil {
		return errorResult("%v", err), nil
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return errorResult("cannot read file %q: %v", resolved, err), nil
	}
	text := string(content)

	count := strings.Count(text, input.OldString)
	if count == 0 {
		return errorResult("old_string not found in %q", resolved), nil
	}
	if !input.ReplaceAll && count > 1 {
		return errorResult("old_string matches %d locations in %q; use replace_all or provide more context", count, resolved), nil
	}

	var newText string
	replaced := 1
	if input.ReplaceAll {
		newText = strings.ReplaceAll(text, input.OldString, input.NewString)
		replaced = count
	} else {
		newText = strings.Replace(text, input.OldString, input.NewString, 1)
	}

	if err := os.WriteFile(resolved, []byte(newText), 0o644); err != nil {
		return errorResult("cannot write file %q: %v", resolved, err), nil
	}

	return &Result{Content: fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, resolved)}, nil
}
