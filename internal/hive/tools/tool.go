// Package tools implements the coordinator's built-in tool set: read,
// write, edit, shell, content search (grep) and file glob — plus the
// registry and ToolSearch meta-tool used to gate the deferred tier.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Result is the outcome of one tool call.
type Result struct {
	Content string
	IsError bool
}

// Tool is a single callable tool exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Definition is the wire shape sent to the chat API.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

func errorResult(format string, args ...any) *Result {
	msg := fmt.Sprintf(format, args...)
	payload, _ := json.Marshal(map[string]string{"error": msg})
	return &Result{Content: string(payload), IsError: true}
}
