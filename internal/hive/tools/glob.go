package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GlobTool lists workspace files matching a shell glob pattern, most
// recently modified first.
type GlobTool struct {
	workspace string
}

// NewGlobTool builds a glob tool rooted at workspace.
func NewGlobTool(workspace string) *GlobTool {
	return &GlobTool{workspace: workspace}
}

func (t *GlobTool) Name() string        { return "glob" }
func (t *GlobTool) Description() string { return "Find files matching a glob pattern." }

func (t *GlobTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string", "description": "Glob pattern, e.g. **/*.go."},
			"path":    map[string]any{"type": "string", "description": "Directory to search from (default: workspace root)."},
		},
		"required": []string{"pattern"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *GlobTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult("invalid parameters: %v", err), nil
	}
	if input.Pattern == "" {
		return errorResult("missing required parameter: pattern"), nil
	}

	searchDir := t.workspace
	if input.Path != "" {
		if filepath.IsAbs(input.Path) {
			searchDir = input.Path
		} else {
			searchDir = filepath.Join(t.workspace, input.Path)
		}
	}

	full := filepath.Join(searchDir, input.Pattern)
	matches, err := filepath.Glob(full)
	if err != nil {
		return errorResult("invalid glob pattern %q: %v", full, err), nil
	}

	type entry struct {
		path  string
		mtime int64
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		mtime := int64(0)
		if err == nil {
			mtime = info.ModTime().UnixNano()
		}
		entries = append(entries, entry{path: m, mtime: mtime})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime > entries[j].mtime })

	if len(entries) == 0 {
		return &Result{Content: "No files matched"}, nil
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.path
	}
	return &Result{Content: strings.Join(paths, "\n")}, nil
}
