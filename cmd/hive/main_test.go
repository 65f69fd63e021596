package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbourmaud/hive/internal/hive/hiveconfig"
	"github.com/mbourmaud/hive/internal/hive/metrics"
)

func TestLoadPlanMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.md")
	content := "## Tasks\n\n### 1. Add retries\n- model: sonnet\n- files: internal/chat/client.go\n\nAdd retry logic.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	tasks, err := loadPlan(path)
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Add retries" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestLoadPlanYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	content := "tasks:\n  - number: 1\n    title: Add retries\n    body: do it\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	tasks, err := loadPlan(path)
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Add retries" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestBuildToolRegistryRegistersCoreTools(t *testing.T) {
	registry := buildToolRegistry(t.TempDir())
	for _, name := range []string{"read", "write", "edit", "shell", "grep", "glob", "ToolSearch"} {
		if _, ok := registry.Get(name); !ok {
			t.Fatalf("expected tool %q to be registered", name)
		}
	}
}

func TestBuildChatClientSelectsBackend(t *testing.T) {
	cfg := hiveconfig.Config{Backend: "anthropic", AnthropicAPIKey: "sk-test", DefaultModel: "sonnet"}
	client, err := buildChatClient(cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	if client.Name() != "anthropic" {
		t.Fatalf("expected anthropic client, got %s", client.Name())
	}
}
