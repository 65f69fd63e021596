package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"strings"
)

// GrepTool shells out to ripgrep for content search.
type GrepTool struct {
	workspace string
}

// NewGrepTool builds a grep tool rooted at workspace.
func NewGrepTool(workspace string) *GrepTool {
	return &GrepTool{workspace: workspace}
}

func (t *GrepTool) Name() string        { return "grep" }
func (t *GrepTool) Description() string { return "Search file contents with ripgrep." }

func (t *GrepTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern":          map[string]any{"type": "string", "description": "Regular expression to search for."},
			"path":             map[string]any{"type": "string", "description": "Directory or file to search (default: workspace root)."},
			"glob":             map[string]any{"type": "string", "description": "Glob filter, e.g. *.go."},
			"case_insensitive": map[string]any{"type": "boolean", "description": "Case-insensitive search."},
			"output_mode":      map[string]any{"type": "string", "enum": []string{"files_with_matches", "count", "content"}},
		},
		"required": []string{"pattern"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *GrepTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Pattern    string `json:"pattern"`
		Path       string `json:"path"`
		Glob       string `json:"glob"`
		IgnoreCase bool   `json:"case_insensitive"`
		OutputMode string `json:"output_mode"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult("invalid parameters: %v", err), nil
	}
	if input.Pattern == "" {
		return errorResult("missing required parameter: pattern"), nil
	}

	searchPath := t.workspace
	if input.Path != "" {
		if filepath.IsAbs(input.Path) {
			searchPath = input.Path
		} else {
			searchPath = filepath.Join(t.workspace, input.Path)
		}
	}

	var args []string
	switch input.OutputMode {
	case "count":
		args = append(args, "--count")
	case "content":
		args = append(args, "--line-number")
	default:
		args = append(args, "--files-with-matches")
	}
	if input.IgnoreCase {
		args = append(args, "--ignore-case")
	}
	if input.Glob != "" {
		args = append(args, "--glob", input.Glob)
	}
	args = append(args, "--", input.Pattern, searchPath)

	cmd := exec.CommandContext(ctx, "rg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	if runErr != nil && stdout.Len() == 0 {
		if stderr.Len() > 0 {
			return errorResult("grep error: %s", strings.TrimSpace(stderr.String())), nil
		}
		return &Result{Content: "No matches found"}, nil
	}

	return &Result{Content: stdout.String()}, nil
}
