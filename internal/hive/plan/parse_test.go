package plan

import "testing"

func TestParseTaskHeadingBasic(t *testing.T) {
	n, title, ok := parseTaskHeading("### 1. Set up environment")
	if !ok || n != 1 || title != "Set up environment" {
		t.Fatalf("got (%d, %q, %v)", n, title, ok)
	}
	n, title, ok = parseTaskHeading("### 12. Write tests")
	if !ok || n != 12 || title != "Write tests" {
		t.Fatalf("got (%d, %q, %v)", n, title, ok)
	}
}

func TestParseTaskHeadingInvalid(t *testing.T) {
	cases := []string{"## Not a task", "### No number", "### 1.", "Regular text"}
	for _, c := range cases {
		if _, _, ok := parseTaskHeading(c); ok {
			t.Fatalf("expected no match for %q", c)
		}
	}
}

const fullPlan = `# Fix authentication system

## Goal
Refactor the authentication module to support OAuth2.

## Tasks

### 1. Set up environment
- type: setup

### 2. Implement OAuth2 provider
- model: sonnet
- parallel: true
- files: src/auth/oauth.ts, src/auth/provider.ts

Implement the OAuth2 provider class with support for Google and GitHub.

### 3. Update API routes
- model: sonnet
- parallel: true
- files: src/routes/auth.ts
- depends_on: 2

### 4. Write tests
- model: haiku
- depends_on: 2, 3

### 5. Create PR/MR
- type: pr
- depends_on: 2, 3, 4

## Definition of Done
- [ ] OAuth2 works
- [ ] Tests pass
`

func TestParseFullStructuredPlan(t *testing.T) {
	tasks := ParseMarkdown(fullPlan)
	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(tasks))
	}

	if tasks[0].Number != 1 || tasks[0].Title != "Set up environment" || tasks[0].Type != TaskSetup {
		t.Fatalf("task 1 mismatch: %+v", tasks[0])
	}

	if tasks[1].Type != TaskWork || tasks[1].Model != "sonnet" || !tasks[1].Parallel {
		t.Fatalf("task 2 mismatch: %+v", tasks[1])
	}
	wantFiles := []string{"src/auth/oauth.ts", "src/auth/provider.ts"}
	if len(tasks[1].Files) != 2 || tasks[1].Files[0] != wantFiles[0] || tasks[1].Files[1] != wantFiles[1] {
		t.Fatalf("task 2 files mismatch: %+v", tasks[1].Files)
	}

	if len(tasks[2].DependsOn) != 1 || tasks[2].DependsOn[0] != 2 {
		t.Fatalf("task 3 deps mismatch: %+v", tasks[2].DependsOn)
	}

	if tasks[3].Model != "haiku" || len(tasks[3].DependsOn) != 2 {
		t.Fatalf("task 4 mismatch: %+v", tasks[3])
	}

	if tasks[4].Type != TaskPR || len(tasks[4].DependsOn) != 3 {
		t.Fatalf("task 5 mismatch: %+v", tasks[4])
	}
}

func TestParseBulletListTasksReturnsEmpty(t *testing.T) {
	content := `# Simple plan

## Tasks
- Install deps
- Write code
`
	if tasks := ParseMarkdown(content); len(tasks) != 0 {
		t.Fatalf("expected empty, got %d", len(tasks))
	}
}

func TestParseNoTasksSectionReturnsEmpty(t *testing.T) {
	content := "# Plan without tasks section\n\n## Steps\n1. First\n"
	if tasks := ParseMarkdown(content); len(tasks) != 0 {
		t.Fatalf("expected empty, got %d", len(tasks))
	}
}

func TestParseTaskMetadataCaseInsensitive(t *testing.T) {
	content := `## Tasks

### 1. Setup
- type: SETUP
- model: Sonnet
- parallel: TRUE
`
	tasks := ParseMarkdown(content)
	if tasks[0].Type != TaskSetup {
		t.Fatalf("expected setup type")
	}
	if tasks[0].Model != "Sonnet" {
		t.Fatalf("expected model case preserved, got %q", tasks[0].Model)
	}
	if !tasks[0].Parallel {
		t.Fatalf("expected parallel true")
	}
}

func TestParseTasksSectionEndsAtNextH2(t *testing.T) {
	content := `## Tasks

### 1. Only task
- model: sonnet

Do the work.

## Definition of Done
- [ ] It works
`
	tasks := ParseMarkdown(content)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if strContains(tasks[0].Body, "Definition of Done") {
		t.Fatalf("body leaked next section: %q", tasks[0].Body)
	}
}

func strContains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestParseYAML(t *testing.T) {
	content := []byte(`
tasks:
  - number: 1
    title: Setup
    type: setup
  - number: 2
    title: Work
    model: sonnet
    depends_on: [1]
`)
	tasks, err := ParseYAML(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 || tasks[1].DependsOn[0] != 1 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}
