package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultShellTimeout = 120 * time.Second
	maxShellTimeout     = 600 * time.Second
	maxOutputBytes      = 30 << 10
)

// ShellTool runs a command via bash -c in the workspace directory, subject
// to the denylist and a bounded timeout.
type ShellTool struct {
	workspace string
}

// NewShellTool builds a shell tool rooted at workspace.
func NewShellTool(workspace string) *ShellTool {
	return &ShellTool{workspace: workspace}
}

func (t *ShellTool) Name() string        { return "shell" }
func (t *ShellTool) Description() string { return "Run a shell command in the workspace." }

func (t *ShellTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Command to run via bash -c."},
			"timeout": map[string]any{"type": "integer", "description": "Timeout in milliseconds (default 120000, max 600000)."},
		},
		"required": []string{"command"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ShellTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Command string `json:"command"`
		Timeout int64  `json:"timeout"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult("invalid parameters: %v", err), nil
	}
	if strings.TrimSpace(input.Command) == "" {
		return errorResult("missing required parameter: command"), nil
	}

	if pattern := checkDenylist(input.Command); pattern != "" {
		return errorResult("blocked dangerous command pattern: %s", pattern), nil
	}

	timeout := defaultShellTimeout
	if input.Timeout > 0 {
		timeout = time.Duration(input.Timeout) * time.Millisecond
		if timeout > maxShellTimeout {
			timeout = maxShellTimeout
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-c", input.Command)
	cmd.Dir = t.workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return errorResult("command timed out after %dms", timeout.Milliseconds()), nil
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return errorResult("failed to run command: %v", runErr), nil
		}
	}

	var out strings.Builder
	if stdout.Len() > 0 {
		out.WriteString(truncateOutput(stdout.String()))
	}
	if stderr.Len() > 0 {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString("STDERR:\n")
		out.WriteString(truncateOutput(stderr.String()))
	}
	if exitCode != 0 {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		fmt.Fprintf(&out, "Exit code: %d", exitCode)
	}

	content := out.String()
	if content == "" {
		content = fmt.Sprintf("Command completed with exit code %d", exitCode)
	}

	return &Result{Content: content}, nil
}

// truncateOutput caps output at maxOutputBytes, cutting at the nearest
// preceding newline so a line is never split mid-way.
func truncateOutput(output string) string {
	if len(output) <= maxOutputBytes {
		return output
	}
	cut := strings.LastIndexByte(output[:maxOutputBytes], '\n')
	if cut < 0 {
		cut = maxOutputBytes
	}
	remaining := len(output) - cut
	return fmt.Sprintf("%s\n\n... (truncated, %d bytes omitted)", output[:cut], remaining)
}
