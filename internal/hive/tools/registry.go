package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Limits guard against pathological model output.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20
)

// ExternalHandler executes one deferred tool call. The transport behind it
// (an MCP subprocess, a network hop) is out of scope here — the registry
// consumes it as an opaque (name, input) → result capability.
type ExternalHandler func(ctx context.Context, name string, params json.RawMessage) (*Result, error)

// Registry manages the set of tools available to a worker, thread-safe for
// concurrent lookups (registration is single-threaded at startup).
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	schemas  map[string]*jsonschema.Schema
	external []Definition
	handler  ExternalHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// RegisterExternal installs the deferred-tier tool definitions and the
// handler that executes them. Every def's name must contain the "__"
// deferred separator.
func (r *Registry) RegisterExternal(defs []Definition, handler ExternalHandler) error {
	for _, d := range defs {
		if !IsDeferred(d.Name) {
			return fmt.Errorf("external tool %q lacks the deferred separator", d.Name)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.external = append(r.external, defs...)
	r.handler = handler
	return nil
}

// Register adds a tool, replacing any existing tool of the same name, and
// compiles its schema for input validation ahead of time so a malformed
// schema fails at registration rather than mid-run.
func (r *Registry) Register(tool Tool) error {
	compiler := jsonschema.NewCompiler()
	url := "mem://" + tool.Name() + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(tool.Schema())); err != nil {
		return fmt.Errorf("compile schema for %s: %w", tool.Name(), err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", tool.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.schemas[tool.Name()] = schema
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions returns every registered tool's wire definition in stable
// name order, optionally including deferred-tier tools.
func (r *Registry) Definitions(includeDeferred bool) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools)+len(r.external))
	for name, tool := range r.tools {
		if !includeDeferred && IsDeferred(name) {
			continue
		}
		defs = append(defs, Definition{
			Name:        name,
			Description: tool.Description(),
			InputSchema: tool.Schema(),
		})
	}
	if includeDeferred {
		defs = append(defs, r.external...)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute validates params against the tool's compiled schema and, if
// valid, runs it. Both a missing tool and a schema violation are reported
// as a tool error (IsError true) rather than a Go error — only
// infrastructure failures (panics aside) return a non-nil error.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (*Result, error) {
	if len(name) > MaxToolNameLength {
		return errorResult("tool name exceeds maximum length of %d characters", MaxToolNameLength), nil
	}
	if len(params) > MaxToolParamsSize {
		return errorResult("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize), nil
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schemas[name]
	handler := r.handler
	r.mu.RUnlock()
	if !ok {
		if IsDeferred(name) && handler != nil {
			return handler(ctx, name, params)
		}
		return errorResult("tool not found: %s", name), nil
	}

	if schema != nil {
		var v any
		if err := json.Unmarshal(params, &v); err != nil {
			return errorResult("invalid JSON parameters: %v", err), nil
		}
		if err := schema.Validate(v); err != nil {
			return errorResult("parameters do not match schema for %s: %v", name, err), nil
		}
	}

	return tool.Execute(ctx, params)
}
