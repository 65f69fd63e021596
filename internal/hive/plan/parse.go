package plan

import (
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// taskHeadingRegex matches "### <number>. <title>" subheadings.
var taskHeadingRegex = regexp.MustCompile(`^###\s+(\d+)\.\s+(.+)$`)

// metadataLineRegex matches "- key: value" metadata lines.
var metadataLineRegex = regexp.MustCompile(`^-\s*([A-Za-z_]+)\s*:\s*(.+)$`)

// ParseMarkdown reads a plan document in the markdown task format into an
// ordered task list. A plan with no "## Tasks" heading, or whose tasks
// section contains only a bullet list rather than numbered subheadings,
// returns an empty slice rather than an error.
func ParseMarkdown(content string) []Task {
	lines := strings.Split(content, "\n")

	start, ok := findTasksSection(lines)
	if !ok {
		return nil
	}

	var tasks []Task
	var current *Task
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		tasks = append(tasks, *current)
		current = nil
		body = nil
	}

	for i := start; i < len(lines); i++ {
		line := lines[i]

		if strings.HasPrefix(strings.TrimSpace(line), "## ") {
			// next top-level section ends the Tasks scope
			break
		}

		if number, title, ok := parseTaskHeading(line); ok {
			flush()
			current = &Task{Number: number, Title: title, Type: TaskWork}
			continue
		}

		if current == nil {
			continue
		}

		if key, value, ok := parseMetadataLine(line); ok {
			applyMetadata(current, key, value)
			continue
		}

		body = append(body, line)
	}
	flush()

	return tasks
}

// findTasksSection returns the index of the first line after a "## Tasks"
// heading (case-insensitive), or false if no such heading exists.
func findTasksSection(lines []string) (int, bool) {
	for i, line := range lines {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if trimmed == "## tasks" {
			return i + 1, true
		}
	}
	return 0, false
}

func parseTaskHeading(line string) (int, string, bool) {
	m := taskHeadingRegex.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, "", false
	}
	title := strings.TrimSpace(m[2])
	if title == "" {
		return 0, "", false
	}
	number, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return number, title, true
}

func parseMetadataLine(line string) (string, string, bool) {
	m := metadataLineRegex.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.TrimSpace(m[2]), true
}

func applyMetadata(t *Task, key, value string) {
	switch key {
	case "type":
		switch strings.ToLower(value) {
		case "setup":
			t.Type = TaskSetup
		case "pr":
			t.Type = TaskPR
		default:
			t.Type = TaskWork
		}
	case "model":
		// value case is preserved — model identifiers may be case-sensitive
		t.Model = value
	case "parallel":
		t.Parallel = strings.EqualFold(value, "true")
	case "files":
		for _, f := range strings.Split(value, ",") {
			f = strings.TrimSpace(f)
			if f != "" {
				t.Files = append(t.Files, f)
			}
		}
	case "depends_on":
		for _, d := range strings.Split(value, ",") {
			d = strings.TrimSpace(d)
			if d == "" {
				continue
			}
			if n, err := strconv.Atoi(d); err == nil {
				t.DependsOn = append(t.DependsOn, n)
			}
		}
	}
}

// yamlPlan is the on-disk shape of the YAML plan form.
type yamlPlan struct {
	Tasks []Task `yaml:"tasks"`
}

// ParseYAML reads the YAML plan form into an ordered task list.
func ParseYAML(content []byte) ([]Task, error) {
	var p yamlPlan
	if err := yaml.Unmarshal(content, &p); err != nil {
		return nil, err
	}
	for i := range p.Tasks {
		if p.Tasks[i].Type == "" {
			p.Tasks[i].Type = TaskWork
		}
	}
	return p.Tasks, nil
}
