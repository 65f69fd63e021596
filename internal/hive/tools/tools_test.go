package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadWriteEditRoundtrip(t *testing.T) {
	dir := t.TempDir()
	write := NewWriteTool(dir)
	read := NewReadTool(dir)
	edit := NewEditTool(dir)
	ctx := context.Background()

	writeParams, _ := json.Marshal(map[string]string{"file_path": "a.txt", "content": "hello\nworld\n"})
	res, err := write.Execute(ctx, writeParams)
	if err != nil || res.IsError {
		t.Fatalf("write failed: %v %+v", err, res)
	}

	readParams, _ := json.Marshal(map[string]string{"file_path": "a.txt"})
	res, err = read.Execute(ctx, readParams)
	if err != nil || res.IsError {
		t.Fatalf("read failed: %v %+v", err, res)
	}
	if res.Content == "" {
		t.Fatalf("expected content")
	}

	editParams, _ := json.Marshal(map[string]any{
		"file_path":  "a.txt",
		"old_string": "world",
		"new_string": "there",
	})
	res, err = edit.Execute(ctx, editParams)
	if err != nil || res.IsError {
		t.Fatalf("edit failed: %v %+v", err, res)
	}

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(content) != "hello\nthere\n" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestEditRequiresUniqueMatch(t *testing.T) {
	dir := t.TempDir()
	write := NewWriteTool(dir)
	edit := NewEditTool(dir)
	ctx := context.Background()

	writeParams, _ := json.Marshal(map[string]string{"file_path": "a.txt", "content": "foo foo foo"})
	write.Execute(ctx, writeParams)

	editParams, _ := json.Marshal(map[string]any{
		"file_path":  "a.txt",
		"old_string": "foo",
		"new_string": "bar",
	})
	res, err := edit.Execute(ctx, editParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected ambiguous-match error")
	}
}

func TestShellDenylist(t *testing.T) {
	dir := t.TempDir()
	shell := NewShellTool(dir)
	params, _ := json.Marshal(map[string]string{"command": "rm -rf /"})
	res, err := shell.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected denylist to block command")
	}
}

func TestShellRunsCommand(t *testing.T) {
	dir := t.TempDir()
	shell := NewShellTool(dir)
	params, _ := json.Marshal(map[string]string{"command": "echo hi"})
	res, err := shell.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %+v", res)
	}
}

func TestRegistryRejectsUnknownTool(t *testing.T) {
	reg := NewRegistry()
	res, err := reg.Execute(context.Background(), "nonexistent", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool-not-found error")
	}
}

func TestRegistryValidatesSchema(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	if err := reg.Register(NewReadTool(dir)); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	res, err := reg.Execute(context.Background(), "read", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected schema validation error for missing file_path")
	}
}

func TestIsDeferred(t *testing.T) {
	if IsDeferred("read") {
		t.Fatalf("expected core tool")
	}
	if !IsDeferred("mcp__playwright__click") {
		t.Fatalf("expected deferred tool")
	}
}

func TestWriteReportsLineCount(t *testing.T) {
	dir := t.TempDir()
	write := NewWriteTool(dir)
	params, _ := json.Marshal(map[string]string{"file_path": "b.txt", "content": "one\ntwo\nthree"})
	res, err := write.Execute(context.Background(), params)
	if err != nil || res.IsError {
		t.Fatalf("write failed: %v %+v", err, res)
	}
	if !strings.HasPrefix(res.Content, "Wrote 3 lines to ") {
		t.Fatalf("unexpected write result: %q", res.Content)
	}
}

func TestRegistryRoutesDeferredToExternalHandler(t *testing.T) {
	reg := NewRegistry()
	defs := []Definition{{
		Name:        "mcp__playwright__click",
		Description: "Click an element in the browser.",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}}
	called := ""
	err := reg.RegisterExternal(defs, func(ctx context.Context, name string, params json.RawMessage) (*Result, error) {
		called = name
		return &Result{Content: "clicked"}, nil
	})
	if err != nil {
		t.Fatalf("register external: %v", err)
	}

	res, err := reg.Execute(context.Background(), "mcp__playwright__click", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError || res.Content != "clicked" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if called != "mcp__playwright__click" {
		t.Fatalf("handler saw name %q", called)
	}
}

func TestRegisterExternalRejectsCoreNames(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterExternal([]Definition{{Name: "read"}}, nil)
	if err == nil {
		t.Fatalf("expected rejection of a non-deferred name")
	}
}

func TestDefinitionsStableOrderAndTiering(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	if err := reg.Register(NewWriteTool(dir)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(NewReadTool(dir)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterExternal([]Definition{{Name: "mcp__x__y", InputSchema: json.RawMessage(`{}`)}}, nil); err != nil {
		t.Fatalf("register external: %v", err)
	}

	core := reg.Definitions(false)
	if len(core) != 2 || core[0].Name != "read" || core[1].Name != "write" {
		t.Fatalf("unexpected core definitions: %+v", core)
	}
	all := reg.Definitions(true)
	if len(all) != 3 || all[0].Name != "mcp__x__y" {
		t.Fatalf("unexpected full definitions: %+v", all)
	}
}
